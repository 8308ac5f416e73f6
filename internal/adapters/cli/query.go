package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/sports-support-rag/internal/core/domain"
)

func newOptimizeCommand(r *root) *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "optimize [query]",
		Short: "Rewrite a question into search queries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.services(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Optimizer.Optimize(cmd.Context(), args[0], domain.Strategy(strings.ToLower(strategy)))
			if err != nil {
				return fmt.Errorf("optimize failed: %w", err)
			}
			if r.asJSON {
				return printJSON(cmd, result)
			}
			cmd.Printf("Strategy: %s\nOptimized: %s\n", result.Strategy, result.OptimizedQuery)
			for i, sq := range result.SubQueries {
				cmd.Printf("  [%d] %s\n", i+1, sq)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(domain.StrategyAuto), "auto, direct, subquery, backtrack or hypothesis")
	return cmd
}

func newResolveCommand(r *root) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "resolve [query]",
		Short: "Answer a question through the full pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := r.services(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Resolver.Resolve(cmd.Context(), domain.ResolutionRequest{Query: args[0], UserID: userID})
			if err != nil {
				return fmt.Errorf("resolve failed: %w", err)
			}
			if r.asJSON {
				return printJSON(cmd, res)
			}
			cmd.Printf("[%s] %s\n", res.Source, res.Reply)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "cli", "user id recorded in the query log")
	return cmd
}
