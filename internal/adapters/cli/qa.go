package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/sports-support-rag/internal/infrastructure/qaimport/xlsx"
)

func newImportCommand(r *root) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Bulk load QA pairs from a spreadsheet",
		Long: `Reads question, answer, category and an optional confidence column.
Rows that fail validation are skipped and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			pairs, err := xlsx.ReadQAPairs(f, sheet)
			if err != nil {
				return err
			}
			svc, err := r.services(cmd.Context())
			if err != nil {
				return err
			}
			report, err := svc.QA.ImportQAPairs(cmd.Context(), pairs)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			if r.asJSON {
				return printJSON(cmd, report)
			}
			cmd.Printf("Inserted: %d\nSkipped: %d\n", report.Inserted, report.Skipped)
			for _, problem := range report.Problems {
				cmd.Printf("  %s\n", problem)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name (first sheet when empty)")
	return cmd
}

func newAddCommand(r *root) *cobra.Command {
	var question, answer, category string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one curated QA pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := r.services(cmd.Context())
			if err != nil {
				return err
			}
			pair, err := svc.QA.AddQAPair(cmd.Context(), question, answer, category)
			if err != nil {
				return fmt.Errorf("add failed: %w", err)
			}
			if r.asJSON {
				return printJSON(cmd, pair)
			}
			cmd.Printf("Added QA pair %d\n", pair.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", "", "customer question")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "curated answer")
	cmd.Flags().StringVarP(&category, "category", "c", "", "product category")
	_ = cmd.MarkFlagRequired("question")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newHotCommand(r *root) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "hot",
		Short: "List the most frequently asked questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := r.services(cmd.Context())
			if err != nil {
				return err
			}
			hot, err := svc.QA.HotQueries(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("hot queries failed: %w", err)
			}
			if r.asJSON {
				return printJSON(cmd, hot)
			}
			if len(hot) == 0 {
				cmd.Println("No queries recorded.")
				return nil
			}
			for i, q := range hot {
				cmd.Printf("  [%d] %s (%d)\n", i+1, q.Query, q.Count)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of entries")
	return cmd
}

func newStatusCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show QA store, cache and vector backend status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := r.services(cmd.Context())
			if err != nil {
				return err
			}
			status := svc.QA.Status(cmd.Context())
			if r.asJSON {
				return printJSON(cmd, status)
			}
			cmd.Printf("QA pairs: %d (high confidence %d, added today %d)\n",
				status.QA.Total, status.QA.HighConfidence, status.QA.AddedToday)
			cmd.Printf("Cache entries: %d, hot queries: %d\n", status.Cache.Entries, status.Cache.HotQueries)
			cmd.Printf("Vector backend: %s\n", status.VectorBackend)
			for _, e := range status.Errors {
				cmd.Printf("  error: %s\n", e)
			}
			return nil
		},
	}
}
