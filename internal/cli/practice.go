package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/drill/internal/practice"
	"github.com/me/drill/internal/records"
	"github.com/me/drill/pkg/model"
	"github.com/me/drill/pkg/srs"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Export or import a learner's progress",
	}

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the learner's progress as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			snap, err := svc.Export(cmd.Context(), flagLearner)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("encode progress: %w", err)
			}
			data = append(data, '\n')

			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d ratings for %s to %s\n", len(snap.Ratings), flagLearner, outPath)
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")

	imp := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge an exported progress file into the learner's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var snap model.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			p, err := svc.Import(cmd.Context(), flagLearner, &snap)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d ratings, %d attempt counts and %d review states for %s\n",
				len(p.Ratings), len(p.Attempts), len(p.Reviews), flagLearner)
			return nil
		},
	}

	cmd.AddCommand(export, imp)
	return cmd
}

func newDueCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List the records due for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			due, p, err := svc.Due(cmd.Context(), flagLearner, records.Filter{Category: category})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(due) == 0 {
				fmt.Fprintln(out, "Nothing due.")
				return nil
			}
			fmt.Fprintf(out, "%-6s %-14s %-8s %s\n", "ID", "CATEGORY", "RATING", "QUESTION")
			for _, r := range due {
				rating := string(p.Ratings[r.ID])
				if rating == "" {
					rating = "-"
				}
				fmt.Fprintf(out, "%-6d %-14s %-8s %s\n", r.ID, r.Category, rating, firstLine(r.Prompt, 60))
			}
			fmt.Fprintf(out, "\n%d of %d records due\n", len(due), svc.Records().Len())
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list records in this category")
	return cmd
}

func newPracticeCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Review records in the terminal",
		Long: "Shows one record at a time. At the prompt enter:\n" +
			"  c  check code (end input with a line containing only '.')\n" +
			"  a  show the answer\n" +
			"  h, m, e  rate hard, medium or easy and move on\n" +
			"  n  skip to the next record\n" +
			"  q  quit",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := openService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := model.ValidateLearner(flagLearner); err != nil {
				return err
			}
			loop := &practiceLoop{
				svc:  svc,
				sess: practice.LocalSession(flagLearner, category),
				in:   bufio.NewScanner(cmd.InOrStdin()),
				out:  cmd.OutOrStdout(),
			}
			return loop.run(cmd)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only practise records in this category")
	return cmd
}

var rateKeys = map[string]srs.Outcome{
	"h": srs.OutcomeHard,
	"m": srs.OutcomeMedium,
	"e": srs.OutcomeEasy,
}

type practiceLoop struct {
	svc  *practice.Service
	sess *model.LearnerSession
	in   *bufio.Scanner
	out  io.Writer
}

func (l *practiceLoop) run(cmd *cobra.Command) error {
	ctx := cmd.Context()
	for {
		rec, err := l.svc.Next(ctx, l.sess, records.Filter{})
		if errors.Is(err, srs.ErrEmptyCandidateSet) {
			fmt.Fprintln(l.out, "No records to practise.")
			return nil
		}
		if err != nil {
			return err
		}
		l.show(rec)

	prompt:
		for {
			fmt.Fprint(l.out, "[c]heck [a]nswer [h]ard [m]edium [e]asy [n]ext [q]uit > ")
			if !l.in.Scan() {
				fmt.Fprintln(l.out)
				return l.in.Err()
			}
			choice := strings.ToLower(strings.TrimSpace(l.in.Text()))

			switch choice {
			case "q", "quit":
				return nil
			case "n", "next":
				break prompt
			case "a", "answer":
				l.answer(rec)
			case "c", "check":
				code, ok := l.readCode()
				if !ok {
					return l.in.Err()
				}
				report, err := l.svc.Check(ctx, l.sess, rec.ID, code)
				if err != nil {
					fmt.Fprintf(l.out, "Error: %v\n", err)
					continue
				}
				printReport(l.out, report)
			default:
				outcome, ok := rateKeys[choice]
				if !ok {
					if o, err := srs.ParseOutcome(choice); err == nil {
						outcome, ok = o, true
					}
				}
				if !ok {
					fmt.Fprintf(l.out, "Unknown command %q\n", choice)
					continue
				}
				st, err := l.svc.Rate(ctx, l.sess, rec.ID, outcome)
				if err != nil {
					return err
				}
				fmt.Fprintf(l.out, "Rated %s. Next review in %s (%s).\n\n",
					outcome, formatDays(st.Interval), st.NextReview().Local().Format("2006-01-02 15:04"))
				break prompt
			}
		}
	}
}

func (l *practiceLoop) show(rec model.Record) {
	header := fmt.Sprintf("Question %d", rec.ID)
	if rec.Category != "" {
		header += " (" + rec.Category + ")"
	}
	fmt.Fprintf(l.out, "=== %s [%s] ===\n%s\n\n", header, rec.Lang(), strings.TrimSpace(rec.Prompt))
}

func (l *practiceLoop) answer(rec model.Record) {
	if rec.Solution == "" {
		fmt.Fprintln(l.out, "No solution stored.")
	} else {
		fmt.Fprintf(l.out, "--- Solution ---\n%s\n", strings.TrimSpace(rec.Solution))
	}
	if rec.Explanation != "" {
		fmt.Fprintf(l.out, "--- Explanation ---\n%s\n", strings.TrimSpace(rec.Explanation))
	}
	fmt.Fprintln(l.out)
}

// readCode reads lines until a line holding a single '.'. ok is false at EOF.
func (l *practiceLoop) readCode() (string, bool) {
	fmt.Fprintln(l.out, "Enter code, finish with '.' on its own line:")
	var lines []string
	for l.in.Scan() {
		line := l.in.Text()
		if strings.TrimSpace(line) == "." {
			return strings.Join(lines, "\n"), true
		}
		lines = append(lines, line)
	}
	return "", false
}

func printReport(w io.Writer, r *practice.CheckReport) {
	if r.Stdout != "" {
		fmt.Fprintf(w, "--- Output ---\n%s", r.Stdout)
		if !strings.HasSuffix(r.Stdout, "\n") {
			fmt.Fprintln(w)
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "--- Error ---\n%s\n", strings.TrimSpace(r.Error))
	}
	for _, c := range r.Checks {
		mark := "FAIL"
		if c.Passed {
			mark = "ok"
		}
		fmt.Fprintf(w, "  [%s] %s: %s\n", mark, c.Name, c.Message)
	}
	switch {
	case r.NoChecks:
		fmt.Fprintln(w, "No checks defined for this record.")
	case r.Passed:
		fmt.Fprintln(w, "All checks passed.")
	default:
		fmt.Fprintln(w, "Some checks failed.")
	}
	fmt.Fprintf(w, "Attempts: %d\n\n", r.Attempts)
}

func firstLine(s string, width int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > width {
		s = s[:width-3] + "..."
	}
	return s
}

func formatDays(d float64) string {
	if d < 1 {
		return fmt.Sprintf("%.0f hours", d*24)
	}
	return fmt.Sprintf("%.1f days", d)
}
