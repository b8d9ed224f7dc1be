package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/drill/internal/extract"
	"github.com/me/drill/internal/records"
)

func newExtractCmd() *cobra.Command {
	var (
		outDir string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "extract <dir>",
		Short: "Extract questions from Q*stack markdown files into record files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := extract.ExtractDir(args[0], extract.Options{
				OutDir: outDir,
				Force:  force,
				Logger: logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No stack files found in %s\n", args[0])
				return nil
			}
			total := 0
			for _, r := range results {
				if r.Skipped {
					fmt.Fprintf(out, "  %-12s skipped (%s exists, use --force)\n", r.Name, r.Output)
					continue
				}
				total += r.Count
				fmt.Fprintf(out, "  %-12s %3d questions -> %s\n", r.Name, r.Count, r.Output)
			}
			fmt.Fprintf(out, "Extracted %d questions from %d files\n", total, len(results))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default <dir>/extracted)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing output files")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var keyName string

	cmd := &cobra.Command{
		Use:   "audit <file>",
		Short: "Report missing and duplicate IDs in a record file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := records.ParseKey(keyName)
			if err != nil {
				return err
			}
			recs, err := records.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d records, key %s\n", len(recs), key)

			if missing := records.MissingIDs(recs, key); len(missing) > 0 {
				fmt.Fprintf(out, "Missing IDs: %s\n", joinInts(missing))
			} else {
				fmt.Fprintln(out, "No missing IDs")
			}

			if dups := records.DuplicateIDs(recs, key); len(dups) > 0 {
				fmt.Fprintln(out, "Duplicate IDs:")
				for _, d := range dups {
					fmt.Fprintf(out, "  %d (%d times)\n", d.Value, d.Count)
				}
			} else {
				fmt.Fprintln(out, "No duplicate IDs")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&keyName, "key", string(records.KeyID), "Key to audit: id or qid_original")
	return cmd
}

func newSolutionsCmd() *cobra.Command {
	var (
		outPath string
		expect  int
	)

	cmd := &cobra.Command{
		Use:   "solutions <file>",
		Short: "Write every stored solution to a single script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := records.Load(args[0])
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				w = f
			}

			n, err := records.WriteSolutions(w, recs)
			if err != nil {
				return fmt.Errorf("write solutions: %w", err)
			}
			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d solutions to %s\n", n, outPath)
			}
			if expect > 0 && n != expect {
				return fmt.Errorf("wrote %d solutions, expected %d", n, expect)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().IntVar(&expect, "expect", 0, "Fail unless exactly this many solutions are written")
	return cmd
}

func newRenumberCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "renumber <file>",
		Short: "Replace each record's id with its qid_original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := records.Load(args[0])
			if err != nil {
				return err
			}

			skipped := records.Renumber(recs)
			if dups := records.DuplicateIDs(recs, records.KeyID); len(dups) > 0 {
				return fmt.Errorf("renumbering would create duplicate ids (first: %d)", dups[0].Value)
			}

			dest := outPath
			if dest == "" {
				dest = args[0]
			}
			if err := records.Save(dest, recs); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Renumbered %d records -> %s\n", len(recs)-len(skipped), dest)
			for _, r := range skipped {
				fmt.Fprintf(out, "  record %d has no qid_original, id kept\n", r.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: rewrite in place)")
	return cmd
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
