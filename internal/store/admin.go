// ABOUTME: Scorer accounts, browser sessions and signup invites
// ABOUTME: Accounts are scorers or admins; invites carry the role they grant

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAdminUserNotFound    = errors.New("admin user not found")
	ErrAdminSessionNotFound = errors.New("admin session not found") // also returned once expired
	ErrAdminInviteNotFound  = errors.New("admin invite not found")
	ErrAdminInviteUsed      = errors.New("admin invite already used")
	ErrAdminInviteExpired   = errors.New("admin invite expired")
	ErrUsernameExists       = errors.New("username already exists")
)

// Role is an account's privilege level.
type Role string

const (
	// RoleAdmin may see and score every regatta and invite other users.
	RoleAdmin Role = "admin"
	// RoleScorer may score the regattas they are listed on.
	RoleScorer Role = "scorer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleScorer
}

// AdminUser is an account that can sign in to the scoring UI.
type AdminUser struct {
	ID           string
	Username     string
	PasswordHash string // bcrypt hash
	DisplayName  string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin reports whether the user has the admin role.
func (u *AdminUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AdminSession is a signed-in browser. Flash messages hang off its ID.
type AdminSession struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// AdminInvite is a one-time signup link.
type AdminInvite struct {
	ID        string
	CreatedBy string // empty for invites minted from the CLI
	Role      Role
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	UsedBy    string
}

// Usable reports whether the invite can still be redeemed at now.
func (i *AdminInvite) Usable(now time.Time) bool {
	return i.UsedAt == nil && now.Before(i.ExpiresAt)
}

// AdminStore defines the interface for account persistence.
type AdminStore interface {
	CreateAdminUser(ctx context.Context, user *AdminUser) error
	GetAdminUser(ctx context.Context, id string) (*AdminUser, error)
	GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error)
	UpdateAdminUserPassword(ctx context.Context, id, passwordHash string) error
	ListAdminUsers(ctx context.Context) ([]*AdminUser, error)
	CountAdminUsers(ctx context.Context) (int, error)

	CreateAdminSession(ctx context.Context, session *AdminSession) error
	GetAdminSession(ctx context.Context, id string) (*AdminSession, error)
	DeleteAdminSession(ctx context.Context, id string) error
	DeleteExpiredAdminSessions(ctx context.Context) error

	CreateAdminInvite(ctx context.Context, invite *AdminInvite) error
	GetAdminInvite(ctx context.Context, id string) (*AdminInvite, error)
	UseAdminInvite(ctx context.Context, inviteID, userID string) error
}

var _ AdminStore = (*SQLiteStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

const adminUserColumns = `id, username, password_hash, display_name, role, created_at`

func scanAdminUser(row rowScanner) (*AdminUser, error) {
	var (
		u       AdminUser
		hash    sql.NullString
		role    string
		created string
	)
	if err := row.Scan(&u.ID, &u.Username, &hash, &u.DisplayName, &role, &created); err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String
	u.Role = Role(role)

	var err error
	if u.CreatedAt, err = parseTime("created_at", created); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateAdminUser inserts an account. The ID is generated when empty and
// the role defaults to scorer.
func (s *SQLiteStore) CreateAdminUser(ctx context.Context, user *AdminUser) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = RoleScorer
	}
	if !user.Role.Valid() {
		return fmt.Errorf("creating admin user: unknown role %q", user.Role)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_users (`+adminUserColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, nullString(user.PasswordHash), user.DisplayName,
		string(user.Role), formatTime(user.CreatedAt),
	)
	if isConstraintViolation(err) {
		return ErrUsernameExists
	}
	if err != nil {
		return fmt.Errorf("inserting admin user: %w", err)
	}

	s.logger.Info("created admin user", "id", user.ID, "username", user.Username, "role", user.Role)
	return nil
}

func (s *SQLiteStore) getAdminUserWhere(ctx context.Context, column, value string) (*AdminUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE `+column+` = ?`, value)
	user, err := scanAdminUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin user by %s: %w", column, err)
	}
	return user, nil
}

// GetAdminUser retrieves an account by ID.
func (s *SQLiteStore) GetAdminUser(ctx context.Context, id string) (*AdminUser, error) {
	return s.getAdminUserWhere(ctx, "id", id)
}

// GetAdminUserByUsername retrieves an account by its sign-in name.
func (s *SQLiteStore) GetAdminUserByUsername(ctx context.Context, username string) (*AdminUser, error) {
	return s.getAdminUserWhere(ctx, "username", username)
}

// UpdateAdminUserPassword replaces an account's password hash.
func (s *SQLiteStore) UpdateAdminUserPassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE admin_users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating admin user password: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	} else if n == 0 {
		return ErrAdminUserNotFound
	}

	s.logger.Info("updated admin user password", "id", id)
	return nil
}

// ListAdminUsers returns every account ordered by display name.
func (s *SQLiteStore) ListAdminUsers(ctx context.Context) ([]*AdminUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+adminUserColumns+` FROM admin_users ORDER BY display_name COLLATE NOCASE, username`)
	if err != nil {
		return nil, fmt.Errorf("querying admin users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*AdminUser
	for rows.Next() {
		u, err := scanAdminUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning admin user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating admin users: %w", err)
	}
	return users, nil
}

// CountAdminUsers returns the number of accounts. Zero means the install
// has not been bootstrapped.
func (s *SQLiteStore) CountAdminUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admin_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting admin users: %w", err)
	}
	return n, nil
}

// CreateAdminSession records a signed-in browser.
func (s *SQLiteStore) CreateAdminSession(ctx context.Context, session *AdminSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, formatTime(session.CreatedAt), formatTime(session.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting admin session: %w", err)
	}
	s.logger.Debug("created admin session", "user_id", session.UserID)
	return nil
}

// GetAdminSession returns the session if it exists and has not expired.
func (s *SQLiteStore) GetAdminSession(ctx context.Context, id string) (*AdminSession, error) {
	var (
		sess             AdminSession
		created, expires string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM admin_sessions WHERE id = ? AND expires_at > ?`,
		id, formatTime(time.Now()),
	).Scan(&sess.ID, &sess.UserID, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin session: %w", err)
	}

	if sess.CreatedAt, err = parseTime("created_at", created); err != nil {
		return nil, err
	}
	if sess.ExpiresAt, err = parseTime("expires_at", expires); err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteAdminSession signs a browser out and drops its pending messages.
func (s *SQLiteStore) DeleteAdminSession(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, id); err != nil {
			return fmt.Errorf("deleting session messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting admin session: %w", err)
		}
		return nil
	})
}

// DeleteExpiredAdminSessions removes expired sessions along with any flash
// messages left queued for them.
func (s *SQLiteStore) DeleteExpiredAdminSessions(ctx context.Context) error {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM admin_sessions WHERE expires_at <= ?`, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("deleting expired sessions: %w", err)
		}
		removed, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_messages WHERE session_id NOT IN (SELECT id FROM admin_sessions)`); err != nil {
			return fmt.Errorf("deleting orphaned session messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Debug("deleted expired admin sessions", "count", removed)
	}
	return nil
}

// CreateAdminInvite stores a signup link. Role defaults to scorer.
func (s *SQLiteStore) CreateAdminInvite(ctx context.Context, invite *AdminInvite) error {
	if invite.Role == "" {
		invite.Role = RoleScorer
	}
	if !invite.Role.Valid() {
		return fmt.Errorf("creating admin invite: unknown role %q", invite.Role)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO admin_invites (id, created_by, role, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		invite.ID, nullString(invite.CreatedBy), string(invite.Role),
		formatTime(invite.CreatedAt), formatTime(invite.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("inserting admin invite: %w", err)
	}
	s.logger.Info("created admin invite", "role", invite.Role, "expires_at", invite.ExpiresAt)
	return nil
}

const adminInviteColumns = `id, created_by, role, created_at, expires_at, used_at, used_by`

func scanAdminInvite(row rowScanner) (*AdminInvite, error) {
	var (
		inv                     AdminInvite
		createdBy, usedBy, used sql.NullString
		role, created, expires  string
	)
	if err := row.Scan(&inv.ID, &createdBy, &role, &created, &expires, &used, &usedBy); err != nil {
		return nil, err
	}
	inv.CreatedBy = createdBy.String
	inv.UsedBy = usedBy.String
	inv.Role = Role(role)

	var err error
	if inv.CreatedAt, err = parseTime("created_at", created); err != nil {
		return nil, err
	}
	if inv.ExpiresAt, err = parseTime("expires_at", expires); err != nil {
		return nil, err
	}
	if inv.UsedAt, err = parseNullTime("used_at", used); err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetAdminInvite retrieves an invite by ID whether or not it is usable.
func (s *SQLiteStore) GetAdminInvite(ctx context.Context, id string) (*AdminInvite, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adminInviteColumns+` FROM admin_invites WHERE id = ?`, id)
	inv, err := scanAdminInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying admin invite: %w", err)
	}
	return inv, nil
}

// UseAdminInvite redeems an invite for userID. It fails with
// ErrAdminInviteUsed, ErrAdminInviteExpired or ErrAdminInviteNotFound.
func (s *SQLiteStore) UseAdminInvite(ctx context.Context, inviteID, userID string) error {
	now := time.Now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		inv, err := scanAdminInvite(tx.QueryRowContext(ctx,
			`SELECT `+adminInviteColumns+` FROM admin_invites WHERE id = ?`, inviteID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAdminInviteNotFound
		}
		if err != nil {
			return fmt.Errorf("querying admin invite: %w", err)
		}
		switch {
		case inv.UsedAt != nil:
			return ErrAdminInviteUsed
		case !inv.Usable(now):
			return ErrAdminInviteExpired
		}

		// used_at IS NULL guards against a concurrent redemption
		res, err := tx.ExecContext(ctx,
			`UPDATE admin_invites SET used_at = ?, used_by = ? WHERE id = ? AND used_at IS NULL`,
			formatTime(now), userID, inviteID)
		if err != nil {
			return fmt.Errorf("marking invite as used: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrAdminInviteUsed
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("admin invite used", "user_id", userID)
	return nil
}
