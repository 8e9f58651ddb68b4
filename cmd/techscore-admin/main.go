// ABOUTME: Admin CLI that reads regattas, scores and rotations from the techscore JSON API
// ABOUTME: Authenticates with a bearer token from TECHSCORE_TOKEN and prints tables

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/fatih/color"

	"github.com/techscore/techscore/internal/api"
)

const defaultURL = "http://localhost:8080"

func printUsage(w io.Writer) {
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(w, "Usage: techscore-admin <command> [args]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  regattas              List the regattas you score")
	fmt.Fprintln(w, "  show <regatta-id>     Show a regatta's teams and races")
	fmt.Fprintln(w, "  scores <regatta-id>   Show current results")
	fmt.Fprintln(w, "  rotation <regatta-id> Show the sail rotation")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  TECHSCORE_URL    Server URL (default: "+defaultURL+")")
	fmt.Fprintln(w, "  TECHSCORE_TOKEN  API token from `techscore token` (required)")
	fmt.Fprintln(w)
}

// client talks to the JSON API.
type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	baseURL := os.Getenv("TECHSCORE_URL")
	if baseURL == "" {
		baseURL = defaultURL
	}
	token := os.Getenv("TECHSCORE_TOKEN")

	if err := run(ctx, os.Stdout, newClient(baseURL, token), os.Args[1], os.Args[2:]); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, c *client, cmd string, args []string) error {
	switch cmd {
	case "help", "-h", "--help":
		printUsage(w)
		return nil
	case "regattas", "show", "scores", "rotation":
	default:
		printUsage(w)
		return fmt.Errorf("unknown command: %s", cmd)
	}

	if c.token == "" {
		return errors.New("TECHSCORE_TOKEN environment variable is required")
	}
	if cmd == "regattas" {
		return cmdRegattas(ctx, w, c)
	}

	if len(args) != 1 {
		return fmt.Errorf("usage: techscore-admin %s <regatta-id>", cmd)
	}
	id := url.PathEscape(args[0])
	switch cmd {
	case "show":
		return cmdShow(ctx, w, c, id)
	case "scores":
		return cmdScores(ctx, w, c, id)
	default:
		return cmdRotation(ctx, w, c, id)
	}
}

func cmdRegattas(ctx context.Context, w io.Writer, c *client) error {
	var regs []api.RegattaSummary
	if err := c.get(ctx, "/api/v1/regattas", &regs); err != nil {
		return err
	}
	if len(regs) == 0 {
		fmt.Fprintln(w, "No regattas.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATES\tSCORING\tDIVISIONS\tSTATUS")
	for _, r := range regs {
		status := "open"
		if r.FinalizedAt != nil {
			status = "finalized"
			if at, err := time.Parse(time.RFC3339, *r.FinalizedAt); err == nil {
				status += " " + humanize.Time(at)
			}
		}
		dates := r.StartDate
		if r.EndDate != r.StartDate {
			dates += " to " + r.EndDate
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, dates, r.Scoring, strings.Join(r.Divisions, ","), status)
	}
	return tw.Flush()
}

func cmdShow(ctx context.Context, w io.Writer, c *client, id string) error {
	var reg api.RegattaResponse
	if err := c.get(ctx, "/api/v1/regattas/"+id, &reg); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Fprintf(w, "%s\n", reg.Name)
	fmt.Fprintf(w, "  %s to %s, %s %s regatta\n", reg.StartDate, reg.EndDate, reg.Participant, reg.Scoring)
	if reg.Venue != "" {
		fmt.Fprintf(w, "  Venue: %s\n", reg.Venue)
	}
	fmt.Fprintln(w)

	scored := 0
	for _, race := range reg.Races {
		if race.Scored {
			scored++
		}
	}
	fmt.Fprintf(w, "%s, %s scored of %s\n\n",
		english.Plural(len(reg.Teams), "team", "teams"),
		humanize.Comma(int64(scored)),
		english.Plural(len(reg.Races), "race", "races"),
	)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHOOL\tTEAM\tID")
	for _, t := range reg.Teams {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.School, t.Name, t.ID)
	}
	return tw.Flush()
}

func cmdScores(ctx context.Context, w io.Writer, c *client, id string) error {
	var scores api.ScoresResponse
	if err := c.get(ctx, "/api/v1/regattas/"+id+"/scores", &scores); err != nil {
		return err
	}
	cyan := color.New(color.FgCyan)

	if len(scores.Standings) > 0 {
		cyan.Fprintln(w, "Standings")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "RANK\tTEAM\tW\tL\tT\tWIN%\t")
		for _, s := range scores.Standings {
			fmt.Fprintf(tw, "%s\t%s %s\t%d\t%d\t%d\t%.3f\t\n",
				humanize.Ordinal(s.Rank), s.Team.School, s.Team.Name, s.Wins, s.Losses, s.Ties, s.WinPercentage)
		}
		return tw.Flush()
	}

	if len(scores.Tables) == 0 {
		fmt.Fprintln(w, "No races scored.")
		return nil
	}
	for i, table := range scores.Tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		cyan.Fprintln(w, table.Title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tTEAM\tRACES\tPEN\tTOTAL")
		for _, rk := range table.Ranks {
			cells := make([]string, len(rk.Races))
			for j, rs := range rk.Races {
				cells[j] = fmt.Sprint(rs.Score)
				if len(rs.Modifiers) > 0 {
					cells[j] += "/" + strings.Join(rs.Modifiers, "/")
				}
			}
			fmt.Fprintf(tw, "%s\t%s %s\t%s\t%d\t%d\n",
				humanize.Ordinal(rk.Rank), rk.Team.School, rk.Team.Name, strings.Join(cells, " "), rk.Penalties, rk.Total)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func cmdRotation(ctx context.Context, w io.Writer, c *client, id string) error {
	var rot api.RotationResponse
	if err := c.get(ctx, "/api/v1/regattas/"+id+"/rotation", &rot); err != nil {
		return err
	}
	if len(rot.Divisions) == 0 {
		fmt.Fprintln(w, "No rotation.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	for i, div := range rot.Divisions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		cyan.Fprintf(w, "Division %s\n", div.Division)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		header := []string{"TEAM"}
		for _, n := range div.Races {
			header = append(header, fmt.Sprint(n))
		}
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, row := range div.Teams {
			cells := []string{row.Team.School + " " + row.Team.Name}
			for _, sail := range row.Sails {
				if sail == "" {
					sail = "-"
				}
				cells = append(cells, sail)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
