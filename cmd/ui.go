package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Launch the terminal dashboard",
	Long:  `Opens the interactive terminal UI for browsing recorded events, their priorities, and sync state.`,
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	app := tui.NewApp(db)
	return app.Run()
}
