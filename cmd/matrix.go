package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/backend"
	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/internal/riskmatrix"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Inspect and refresh the risk matrix",
}

var matrixShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active risk matrix",
	Long: `Prints the matrix the risk wizard would use right now, resolved the
same way the wizard resolves it: backend, then local cache, then the
bundled offline asset.`,
	RunE: runMatrixShow,
}

var matrixPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the latest risk matrix from the backend",
	RunE:  runMatrixPull,
}

func init() {
	matrixCmd.AddCommand(matrixShowCmd, matrixPullCmd)
}

func runMatrixShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	m, err := loadMatrix(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Risk matrix — revision " + m.Revision))
	for i, q := range m.Consequences {
		fmt.Printf("\nC%d. %s\n", i+1, q.Prompt)
		for _, o := range q.Options {
			fmt.Printf("    %-24s %.2f", o.ID, o.Factor)
			if o.NotApplicable {
				fmt.Print("  (not applicable)")
			}
			fmt.Println()
		}
	}
	fmt.Printf("\nL.  %s\n", m.Likelihood.Prompt)
	for _, o := range m.Likelihood.Options {
		fmt.Printf("    %-24s %.2f\n", o.ID, o.Factor)
	}

	fmt.Println("\nPriority bands (first match wins):")
	for _, b := range m.Bands {
		fmt.Printf("    %-4s score in %-8s %s\n", b.Code, b.Range, b.Action)
	}
	fmt.Printf("    %-4s otherwise\n", m.DefaultPriority)
	return nil
}

func runMatrixPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Backend.Enabled || cfg.Backend.APIKey == "" {
		return fmt.Errorf("no backend configured; run 'fieldscan register' first")
	}

	loader := &riskmatrix.Loader{
		CachePath: cfg.RiskModel.CachePath,
		Fetcher:   backend.NewWithKey(cfg.Backend.URL, cfg.Backend.APIKey),
	}
	m, err := loader.Pull(ctx)
	if err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓ Risk matrix updated"))
	fmt.Printf("  Revision: %s\n", m.Revision)
	fmt.Printf("  Cached:   %s\n", cfg.RiskModel.CachePath)
	return nil
}
