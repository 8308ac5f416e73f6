package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/sports-support-rag/internal/core/ports"
)

// Services are the use cases the operator commands drive.
type Services struct {
	Resolver  ports.QueryResolver
	Optimizer ports.QueryOptimizer
	QA        ports.QAAdministration
}

// Loader builds the services on first use so that help and flag errors never
// touch the backing stores.
type Loader func(ctx context.Context) (*Services, error)

type root struct {
	load   Loader
	svc    *Services
	asJSON bool
}

func NewRootCommand(load Loader) *cobra.Command {
	r := &root{load: load}
	cmd := &cobra.Command{
		Use:           "qactl",
		Short:         "Operate the product support QA store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&r.asJSON, "json", false, "output as JSON")

	cmd.AddCommand(
		newImportCommand(r),
		newAddCommand(r),
		newHotCommand(r),
		newStatusCommand(r),
		newOptimizeCommand(r),
		newResolveCommand(r),
	)
	return cmd
}

func (r *root) services(ctx context.Context) (*Services, error) {
	if r.svc != nil {
		return r.svc, nil
	}
	if r.load == nil {
		return nil, errors.New("services not configured")
	}
	svc, err := r.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("init services: %w", err)
	}
	r.svc = svc
	return svc, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
