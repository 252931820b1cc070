package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/backend"
	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/internal/risk"
	"github.com/structiq/fieldscan-agent/internal/riskmatrix"
	"github.com/structiq/fieldscan-agent/models"
)

var riskEventID string

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Run the risk assessment wizard for an event",
	Long: `Walks through the five risk questions — four consequence questions and
one likelihood question — and computes the event's risk score and repair
priority from the active risk matrix.

The score is the highest consequence factor multiplied by the likelihood
factor. "Not applicable" may be chosen on at most three of the four
consequence questions.`,
	RunE: runRisk,
}

func init() {
	riskCmd.Flags().StringVar(&riskEventID, "event", "", "event ID to assess (required)")
	_ = riskCmd.MarkFlagRequired("event")
}

// loadMatrix resolves the active risk matrix using the configured
// source chain: backend, local cache, bundled asset.
func loadMatrix(ctx context.Context, cfg *config.Config) (*riskmatrix.Matrix, error) {
	loader := &riskmatrix.Loader{
		CachePath: cfg.RiskModel.CachePath,
		Offline:   cfg.RiskModel.Offline,
	}
	if cfg.Backend.Enabled && cfg.Backend.APIKey != "" {
		loader.Fetcher = backend.NewWithKey(cfg.Backend.URL, cfg.Backend.APIKey)
	}
	return loader.Load(ctx)
}

func runRisk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(ctx, riskEventID)
	if err != nil {
		return err
	}

	matrix, err := loadMatrix(ctx, cfg)
	if err != nil {
		return fmt.Errorf("loading risk matrix: %w", err)
	}
	slog.Debug("risk matrix loaded", "revision", matrix.Revision)

	fmt.Println(headerStyle.Render("Risk assessment — " + ev.Title))
	fmt.Println(dimStyle.Render("Matrix revision: " + matrix.Revision))
	fmt.Println()

	answers := risk.Answers{Consequences: make([]string, len(matrix.Consequences))}

	var result *risk.Result
	for {
		var groups []*huh.Group
		for i := range matrix.Consequences {
			q := &matrix.Consequences[i]
			opts := make([]huh.Option[string], 0, len(q.Options))
			for _, o := range q.Options {
				opts = append(opts, huh.NewOption(o.Label, o.ID))
			}
			groups = append(groups, huh.NewGroup(
				huh.NewSelect[string]().
					Title(fmt.Sprintf("%d/5 · %s", i+1, q.Prompt)).
					Options(opts...).
					Value(&answers.Consequences[i]),
			))
		}
		lopts := make([]huh.Option[string], 0, len(matrix.Likelihood.Options))
		for _, o := range matrix.Likelihood.Options {
			lopts = append(lopts, huh.NewOption(o.Label, o.ID))
		}
		groups = append(groups, huh.NewGroup(
			huh.NewSelect[string]().
				Title("5/5 · "+matrix.Likelihood.Prompt).
				Options(lopts...).
				Value(&answers.Likelihood),
		))

		if err := huh.NewForm(groups...).Run(); err != nil {
			return err
		}

		result, err = risk.Evaluate(matrix, answers)
		if err == nil {
			break
		}
		fmt.Println(warnStyle.Render("  " + err.Error()))
		fmt.Println(dimStyle.Render("  Adjust your answers and try again."))
		fmt.Println()
	}

	ra := &models.RiskAssessment{
		EventID:    ev.ID,
		MatrixRev:  matrix.Revision,
		Answers:    append(append([]string{}, answers.Consequences...), answers.Likelihood),
		Score:      result.Score,
		Priority:   result.Priority,
		AssessedAt: time.Now().UTC(),
	}
	if err := db.SaveRiskAssessment(ctx, ra); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Assessment saved"))
	fmt.Printf("  Score:     %.2f (max consequence %.2f × likelihood %.2f)\n",
		result.Score, result.MaxConsequence, result.LikelihoodFactor)
	fmt.Printf("  Priority:  %s\n", result.Priority)
	for _, band := range matrix.Bands {
		if models.MapPriority(band.Code) == result.Priority && band.Action != "" {
			fmt.Printf("  Action:    %s\n", band.Action)
			break
		}
	}
	return nil
}
