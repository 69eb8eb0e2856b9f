package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearbound/enrich-cli/internal/cost"
	"github.com/clearbound/enrich-cli/internal/model"
	"github.com/clearbound/enrich-cli/internal/store"
)

var (
	enrichName    string
	enrichWebsite string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single company",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := executeRun(ctx, env, model.EnrichmentRequest{
			Name:    enrichName,
			Website: enrichWebsite,
		})
		if err != nil {
			return err
		}

		usage := env.Extractor.Usage()
		zap.L().Info("enrichment complete",
			zap.String("run_id", run.ID),
			zap.Int64("input_tokens", usage.InputTokens),
			zap.Int64("output_tokens", usage.OutputTokens),
			zap.Float64("est_cost_usd", cost.NewCalculator(nil).Claude(cfg.Anthropic.Model, usage)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichName, "name", "", "company name")
	enrichCmd.Flags().StringVar(&enrichWebsite, "website", "", "company website URL")
	rootCmd.AddCommand(enrichCmd)
}

// executeRun runs one enrichment and persists its lifecycle in the store.
func executeRun(ctx context.Context, env *appEnv, req model.EnrichmentRequest) (*model.Run, error) {
	run, err := env.Orchestrator.Run(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment run")
	}
	if err := persistRun(ctx, env.Store, run); err != nil {
		return nil, err
	}
	return run, nil
}

func persistRun(ctx context.Context, st store.Store, run *model.Run) error {
	if err := st.CreateRun(ctx, run); err != nil {
		return eris.Wrap(err, "persist run")
	}
	if err := st.CompleteRun(ctx, run); err != nil {
		return eris.Wrap(err, "persist run result")
	}
	return nil
}
