package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

// remoteRecord mirrors the record view returned by the server.
type remoteRecord struct {
	ID          int    `json:"id"`
	Category    string `json:"category"`
	Prompt      string `json:"question"`
	Language    string `json:"language"`
	HasChecks   bool   `json:"has_checks"`
	Explanation string `json:"explanation"`
}

type remoteSession struct {
	ID        string `json:"id"`
	Learner   string `json:"learner"`
	CurrentID int    `json:"current_id"`
	Category  string `json:"category"`
}

func requireServer() error {
	if cfg.ServerURL == "" {
		return fmt.Errorf("no server configured (use --server or DRILL_SERVER_URL)")
	}
	return nil
}

func startRemoteSession(category string) (*remoteSession, error) {
	resp, err := client.Post("/api/v1/sessions", map[string]string{
		"learner":  flagLearner,
		"category": category,
	})
	if err != nil {
		return nil, err
	}
	var sess remoteSession
	if err := json.Unmarshal(resp.Data, &sess); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &sess, nil
}

func newNextCmd() *cobra.Command {
	var (
		category  string
		id        int
		sessionID string
	)

	cmd := &cobra.Command{
		Use:   "next",
		Short: "Fetch the next record to practise from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireServer(); err != nil {
				return err
			}
			if sessionID == "" {
				sess, err := startRemoteSession(category)
				if err != nil {
					return err
				}
				sessionID = sess.ID
			}

			body := map[string]any{}
			if category != "" {
				body["category"] = category
			}
			if id != 0 {
				body["id"] = id
			}
			resp, err := client.Post("/api/v1/sessions/"+url.PathEscape(sessionID)+"/next", body)
			if err != nil {
				return err
			}
			var data struct {
				SessionID string       `json:"session_id"`
				Record    remoteRecord `json:"record"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			out := cmd.OutOrStdout()
			rec := data.Record
			fmt.Fprintf(out, "Session:  %s\n", data.SessionID)
			fmt.Fprintf(out, "Record:   %d", rec.ID)
			if rec.Category != "" {
				fmt.Fprintf(out, " (%s)", rec.Category)
			}
			fmt.Fprintf(out, " [%s]\n\n%s\n", rec.Language, strings.TrimSpace(rec.Prompt))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only draw from this category")
	cmd.Flags().IntVar(&id, "id", 0, "Fetch this record")
	cmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	return cmd
}

func newRateCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "rate <id> <outcome>",
		Short: "Rate a record on the server (outcome: hard, medium or easy)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireServer(); err != nil {
				return err
			}
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			outcome, err := srs.ParseOutcome(args[1])
			if err != nil {
				return err
			}

			if sessionID == "" {
				sess, err := startRemoteSession("")
				if err != nil {
					return err
				}
				sessionID = sess.ID
				defer client.Delete("/api/v1/sessions/" + url.PathEscape(sessionID))
			}

			resp, err := client.Post("/api/v1/sessions/"+url.PathEscape(sessionID)+"/rate", map[string]any{
				"id":      id,
				"outcome": outcome,
			})
			if err != nil {
				return err
			}
			var data struct {
				RecordID   int       `json:"record_id"`
				Outcome    string    `json:"outcome"`
				Interval   float64   `json:"interval"`
				NextReview time.Time `json:"next_review"`
			}
			if err := json.Unmarshal(resp.Data, &data); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rated %d %s. Next review in %s (%s).\n",
				data.RecordID, data.Outcome, formatDays(data.Interval), data.NextReview.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Rate within an existing session")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var showRows bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the learner's statistics from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireServer(); err != nil {
				return err
			}
			resp, err := client.Get("/api/v1/learners/" + url.PathEscape(flagLearner) + "/stats")
			if err != nil {
				return err
			}
			var st model.Stats
			if err := json.Unmarshal(resp.Data, &st); err != nil {
				return fmt.Errorf("parse stats: %w", err)
			}
			printStats(cmd, &st, showRows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showRows, "rows", false, "Also list every reviewed record")
	return cmd
}

func printStats(cmd *cobra.Command, st *model.Stats, rows bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Learner:         %s\n", st.Learner)
	fmt.Fprintf(out, "Records:         %d\n", st.TotalRecords)
	fmt.Fprintf(out, "Rated:           %d\n", st.Rated)
	fmt.Fprintf(out, "Due now:         %d\n", st.DueNow)
	fmt.Fprintf(out, "Reviewed today:  %d\n", st.ReviewedToday)
	fmt.Fprintf(out, "Code runs:       %d\n", st.TotalAttempts)
	fmt.Fprintf(out, "Streak:          %d days\n", st.StreakDays)

	outcomes := make([]string, 0, len(st.ByOutcome))
	for _, o := range srs.Outcomes {
		if n, ok := st.ByOutcome[o]; ok {
			outcomes = append(outcomes, fmt.Sprintf("%s=%d", o, n))
		}
	}
	if len(outcomes) > 0 {
		fmt.Fprintf(out, "Ratings:         %s\n", strings.Join(outcomes, " "))
	}

	if !rows || len(st.Rows) == 0 {
		return
	}
	sort.Slice(st.Rows, func(i, j int) bool { return st.Rows[i].ID < st.Rows[j].ID })
	fmt.Fprintf(out, "\n%-6s %-14s %-8s %-8s %-10s %s\n", "ID", "CATEGORY", "RATING", "RUNS", "INTERVAL", "NEXT REVIEW")
	for _, r := range st.Rows {
		next := "-"
		if !r.LastReview.IsZero() {
			next = r.NextReview.Local().Format("2006-01-02 15:04")
			if r.Due {
				next += " (due)"
			}
		}
		rating := string(r.Rating)
		if rating == "" {
			rating = "-"
		}
		fmt.Fprintf(out, "%-6d %-14s %-8s %-8d %-10s %s\n", r.ID, r.Category, rating, r.Attempts, formatDays(r.Interval), next)
	}
}
