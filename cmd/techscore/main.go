// ABOUTME: Entry point for the techscore scoring server
// ABOUTME: Subcommands serve, set up, seed and probe a techscore installation

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/techscore/techscore/internal/auth"
	"github.com/techscore/techscore/internal/config"
	"github.com/techscore/techscore/internal/importer"
	"github.com/techscore/techscore/internal/server"
	"github.com/techscore/techscore/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
  _            _
 | |_ ___  ___| |__  ___  ___ ___  _ __ ___
 | __/ _ \/ __| '_ \/ __|/ __/ _ \| '__/ _ \
 | ||  __/ (__| | | \__ \ (_| (_) | | |  __/
  \__\___|\___|_| |_|___/\___\___/|_|  \___|
`

// getDataPath returns the techscore data directory.
// Priority: XDG_DATA_HOME/techscore > ~/.local/share/techscore
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "techscore")
}

func printUsage() {
	fmt.Println("Usage: techscore <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                          Start the scoring server")
	fmt.Println("  init                           Create a new config file interactively")
	fmt.Println("  bootstrap --username NAME      Create the config, database and first administrator")
	fmt.Println("  import FILE                    Import schools, sailors and regattas from TOML")
	fmt.Println("  token --username NAME [--ttl]  Issue an API token for a user")
	fmt.Println("  health                         Check server health")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "bootstrap":
		err = runBootstrap(ctx, args)
	case "import":
		err = runImport(ctx, args)
	case "token":
		err = runToken(ctx, args)
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	if cfg.Updates.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Updates:   ")
		if cfg.Updates.WebhookURL != "" {
			cyan.Println(cfg.Updates.WebhookURL)
		} else {
			yellow.Println("log only")
		}
	}
	fmt.Println()

	logger.Info("starting techscore", "config", configPath, "http_addr", cfg.Server.HTTPAddr)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

// openStore loads the config and opens its database.
func openStore() (*config.Config, *store.SQLiteStore, error) {
	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return cfg, st, nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, path := range []string{"/health", "/health/ready"} {
		url := fmt.Sprintf("http://%s%s", cfg.Server.HTTPAddr, path)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}
	}

	color.Green("healthy")
	return nil
}

// parseFlags reads "--name value" and "--name=value" pairs. Flags not in
// allowed are rejected, as are positional arguments unless positional is
// non-nil.
func parseFlags(args []string, allowed []string, positional *[]string) (map[string]string, error) {
	out := make(map[string]string)
	known := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		known[a] = true
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			if positional == nil {
				return nil, fmt.Errorf("unexpected argument: %s", arg)
			}
			*positional = append(*positional, arg)
			continue
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !known[name] {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		out[name] = value
	}
	return out, nil
}

// runBootstrap performs first-time setup:
// 1. Creates the config file with a random JWT secret (if missing)
// 2. Creates the database and the first administrator
// 3. Prints the generated password when none was given
func runBootstrap(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, []string{"username", "name", "password"}, nil)
	if err != nil {
		return err
	}
	username := strings.TrimSpace(flags["username"])
	if username == "" {
		return errors.New("--username flag is required")
	}
	displayName := strings.TrimSpace(flags["name"])
	if displayName == "" {
		displayName = username
	}
	if len(displayName) > 100 {
		return errors.New("display name exceeds maximum length of 100 characters")
	}

	configPath := config.DefaultPath()
	dataPath := getDataPath()

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		secret, err := randomString(32)
		if err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(dataPath, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
		content := renderConfig(configValues{
			HTTPAddr:  "localhost:8080",
			DBPath:    filepath.Join(dataPath, "techscore.db"),
			JWTSecret: secret,
			LogLevel:  "info",
			LogFormat: "text",
			TeamBoats: "3",
		})
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	count, err := st.CountAdminUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("bootstrap already complete: found %s", humanize.Plural(count, "user", "users"))
	}

	password := flags["password"]
	generated := password == ""
	if generated {
		if password, err = randomString(12); err != nil {
			return fmt.Errorf("generating password: %w", err)
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &store.AdminUser{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		Role:         store.RoleAdmin,
	}
	if err := st.CreateAdminUser(ctx, user); err != nil {
		return fmt.Errorf("creating administrator: %w", err)
	}
	green.Printf("  ✓ Created administrator: %s\n", username)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Administrator")
	cyan.Println("  -------------")
	fmt.Printf("  ID:           %s\n", user.ID)
	fmt.Printf("  Username:     %s\n", user.Username)
	fmt.Printf("  Display Name: %s\n", user.DisplayName)
	if generated {
		yellow.Printf("  Password:     %s (change it after signing in)\n", password)
	}
	fmt.Println()
	yellow.Println("  Ready to go:")
	fmt.Println("    techscore serve                       # start the server")
	fmt.Println("    techscore token --username " + username + "   # issue an API token")
	fmt.Println()
	return nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func runImport(ctx context.Context, args []string) error {
	var files []string
	if _, err := parseFlags(args, nil, &files); err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("usage: techscore import FILE [FILE...]")
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	green := color.New(color.FgGreen)
	for _, path := range files {
		sum, err := importer.New(st).ImportFile(ctx, path)
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}
		green.Printf("  ✓ %s\n", path)
		fmt.Printf("    %s, %s, %s\n",
			humanize.Plural(sum.Boats, "new boat", "new boats"),
			humanize.Plural(sum.Schools, "new school", "new schools"),
			humanize.Plural(sum.Sailors, "sailor", "sailors"),
		)
		for _, reg := range sum.Regattas {
			fmt.Printf("    regatta %s (%s) starting %s\n", reg.Name, reg.ID, reg.StartDate.Format("Jan 02, 2006"))
		}
	}
	return nil
}

func runToken(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, []string{"username", "ttl"}, nil)
	if err != nil {
		return err
	}
	username := flags["username"]
	if username == "" {
		return errors.New("--username flag is required")
	}

	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}
	ttl := cfg.Auth.TokenTTL
	if raw, ok := flags["ttl"]; ok {
		if ttl, err = time.ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid --ttl: %w", err)
		}
	}

	user, err := st.GetAdminUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", username, err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(user.ID, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	if err := st.AppendAuditLog(ctx, &store.AuditEntry{
		ActorUserID: user.ID,
		Action:      store.AuditCreateToken,
		TargetType:  "user",
		TargetID:    user.ID,
		Detail:      map[string]any{"ttl": ttl.String()},
	}); err != nil {
		return fmt.Errorf("recording token in audit log: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Token for %s expires %s\n", user.Username, humanize.Time(time.Now().Add(ttl)))
	fmt.Println(token)
	return nil
}

type configValues struct {
	HTTPAddr   string
	DBPath     string
	JWTSecret  string
	LogLevel   string
	LogFormat  string
	BaseURL    string
	WebhookURL string
	TeamBoats  string
}

func renderConfig(v configValues) string {
	var b strings.Builder
	b.WriteString("# techscore configuration\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  http_addr: %q\n", v.HTTPAddr)
	b.WriteString("  shutdown_timeout: \"10s\"\n\n")

	b.WriteString("database:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", v.DBPath)

	b.WriteString("auth:\n")
	fmt.Fprintf(&b, "  jwt_secret: %q\n", v.JWTSecret)
	b.WriteString("  token_ttl: \"720h\"\n\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", v.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n\n", v.LogFormat)

	b.WriteString("webadmin:\n")
	if v.BaseURL != "" {
		fmt.Fprintf(&b, "  base_url: %q\n", v.BaseURL)
	}
	b.WriteString("  session_ttl: \"168h\"\n")
	b.WriteString("  invite_ttl: \"24h\"\n\n")

	b.WriteString("updates:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", v.WebhookURL != "")
	if v.WebhookURL != "" {
		fmt.Fprintf(&b, "  webhook_url: %q\n", v.WebhookURL)
	}
	b.WriteString("  interval: \"5s\"\n")
	b.WriteString("  coalesce: \"30s\"\n\n")

	b.WriteString("scoring:\n")
	fmt.Fprintf(&b, "  team_boats: %s\n", v.TeamBoats)
	b.WriteString("  default_boat: \"FJ\"\n")
	return b.String()
}

func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("techscore configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.DefaultPath())
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := strings.ToLower(prompt(reader, "File exists. Overwrite?", "no"))
		if overwrite != "yes" && overwrite != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	secret, err := randomString(32)
	if err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	fmt.Println("\n--- Server Configuration ---")
	v := configValues{JWTSecret: secret}
	v.HTTPAddr = prompt(reader, "HTTP address", "localhost:8080")
	v.BaseURL = prompt(reader, "Public base URL (for invite links)", "")

	fmt.Println("\n--- Database Configuration ---")
	v.DBPath = prompt(reader, "SQLite database path", filepath.Join(getDataPath(), "techscore.db"))

	fmt.Println("\n--- Public Site Updates ---")
	v.WebhookURL = prompt(reader, "Webhook URL (leave empty to disable)", "")

	fmt.Println("\n--- Scoring ---")
	v.TeamBoats = prompt(reader, "Boats per team in team racing", "3")

	fmt.Println("\n--- Logging Configuration ---")
	v.LogLevel = prompt(reader, "Log level (debug/info/warn/error)", "info")
	v.LogFormat = prompt(reader, "Log format (text/json)", "text")

	content := renderConfig(v)
	if _, err := config.Parse([]byte(content)); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	dataDir := filepath.Dir(v.DBPath)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext:")
	fmt.Println("  techscore bootstrap --username admin")
	fmt.Println("  techscore serve")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}
