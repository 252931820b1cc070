package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/backend"
	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/internal/database"
	"github.com/structiq/fieldscan-agent/internal/riskmatrix"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify storage, database, and backend connectivity",
	Long: `Checks that the event store is writable, the database can be reached,
a usable risk matrix is available, and (when configured) the backend
accepts this agent's API key.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== fieldscan doctor ===")
	fmt.Println()

	// Project identity
	fmt.Print("Project .................. ")
	if cfg.Project.Code == "" {
		fmt.Println("WARN (not configured — run 'fieldscan onboard')")
		allOK = false
	} else {
		fmt.Printf("OK (%s, inspector %s)\n", cfg.Project.Code, cfg.Project.Inspector)
	}

	// Event store
	fmt.Print("Event store .............. ")
	if err := config.EnsureDir(); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if fi, err := os.Stat(cfg.Storage.EventsDir); err != nil || !fi.IsDir() {
		fmt.Printf("FAIL (%s is not a directory)\n", cfg.Storage.EventsDir)
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", cfg.Storage.EventsDir)
	}

	// Database
	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	if err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			target := cfg.Database.Path
			if db.Driver() == "mysql" {
				target = "mysql"
			}
			fmt.Printf("OK (%s: %s)\n", db.Driver(), target)
		}
		db.Close()
	}

	// Risk matrix
	fmt.Print("Risk matrix .............. ")
	if m, err := loadMatrix(ctx, cfg); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (revision %s)\n", m.Revision)
	}

	// Bundled fallback must always parse.
	fmt.Print("Offline fallback ......... ")
	if _, err := riskmatrix.Bundled(); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Println("OK")
	}

	// Backend
	fmt.Print("Backend .................. ")
	switch {
	case !cfg.Backend.Enabled:
		fmt.Println("disabled (offline mode — run 'fieldscan register' to connect)")
	case cfg.Backend.APIKey == "":
		fmt.Println("WARN (enabled but no API key — run 'fieldscan register')")
		allOK = false
	default:
		client := backend.NewWithKey(cfg.Backend.URL, cfg.Backend.APIKey)
		info, err := client.Ping(ctx)
		if err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else {
			fmt.Printf("OK (%s as %s)\n", cfg.Backend.URL, info.DisplayName)
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed — fieldscan is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed — run 'fieldscan onboard' to fix."))
	}
	return nil
}
