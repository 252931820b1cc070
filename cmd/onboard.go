package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard for fieldscan",
	Long: `Walks you through configuring fieldscan:
  - Project code and inspector name (stamped onto every event)
  - Backend connection (optional — enables sync and the shared risk matrix)
  - Local store (SQLite file, or MySQL for crews sharing a site server)
  - Sync behaviour (retry attempts, watch schedule)

Without a backend the agent works fully offline: events are stored
locally and the bundled risk matrix is used. Run 'fieldscan register'
later to connect and start syncing.`,
	RunE: runOnboard,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  fieldscan — field inspection agent"))
	fmt.Println(dimStyle.Render("  Record inspection events offline, sync them when you have signal.\n"))

	// Load existing config or start fresh.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = &config.Config{}
	}

	// Ensure ~/.fieldscan/ and ~/.fieldscan/events/ exist.
	if err := config.EnsureDir(); err != nil {
		return fmt.Errorf("creating fieldscan directories: %w", err)
	}

	// --- Step 1: Project identity ---
	fmt.Println(headerStyle.Render("  Step 1/4 · Project"))

	projectCode := cfg.Project.Code
	inspector := cfg.Project.Inspector

	projectForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project code").
				Description("Short identifier stamped onto every event, e.g. BR-2024-017.").
				Placeholder("BR-2024-017").
				Value(&projectCode).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("project code cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Inspector name").
				Description("Recorded as the author of each event.").
				Value(&inspector).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("inspector name cannot be empty")
					}
					return nil
				}),
		),
	)
	if err := projectForm.Run(); err != nil {
		return err
	}
	cfg.Project.Code = strings.TrimSpace(projectCode)
	cfg.Project.Inspector = strings.TrimSpace(inspector)

	// --- Step 2: Backend (optional) ---
	fmt.Println(headerStyle.Render("\n  Step 2/4 · Backend (optional)"))
	fmt.Println(dimStyle.Render("  Without a backend everything still works offline — events are"))
	fmt.Println(dimStyle.Render("  stored locally and the bundled risk matrix is used. A backend is"))
	fmt.Println(dimStyle.Render("  only needed for syncing and the shared, up-to-date risk matrix.\n"))

	backendURL := cfg.Backend.URL
	apiKey := cfg.Backend.APIKey

	backendForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL (leave blank to skip)").
				Description("Your inspection backend, e.g. https://inspections.example.com").
				Placeholder("https://...  (optional)").
				Value(&backendURL),
			huh.NewInput().
				Title("API key (leave blank to register later)").
				Description("Issued by the backend. 'fieldscan register' can create one for you.").
				Placeholder("fsk_...  (optional)").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)
	if err := backendForm.Run(); err != nil {
		return err
	}
	backendURL = strings.TrimSpace(backendURL)
	cfg.Backend.URL = backendURL
	cfg.Backend.APIKey = strings.TrimSpace(apiKey)
	cfg.Backend.Enabled = backendURL != ""
	if cfg.Backend.Enabled {
		fmt.Println(successStyle.Render("  Backend configured — sync and matrix refresh enabled.\n"))
	} else {
		fmt.Println(dimStyle.Render("  Offline mode selected. Connect later with 'fieldscan register'.\n"))
	}

	// --- Step 3: Local store ---
	fmt.Println(headerStyle.Render("\n  Step 3/4 · Local Store"))

	driver := cfg.Database.Driver
	if driver == "" {
		driver = "sqlite3"
	}
	mysqlDSN := cfg.Database.DSN

	storeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Database driver").
				Description("SQLite keeps everything in ~/.fieldscan. MySQL lets a crew share one store.").
				Options(
					huh.NewOption("sqlite — single-inspector, zero setup (recommended)", "sqlite3"),
					huh.NewOption("mysql — shared store on a site server", "mysql"),
				).
				Value(&driver),
			huh.NewInput().
				Title("MySQL DSN (only if mysql selected)").
				Description("Example: crew:secret@tcp(10.0.0.5:3306)/fieldscan?parseTime=true").
				Placeholder("user:pass@tcp(host:3306)/fieldscan?parseTime=true").
				Value(&mysqlDSN),
		),
	)
	if err := storeForm.Run(); err != nil {
		return err
	}
	cfg.Database.Driver = driver
	cfg.Database.DSN = strings.TrimSpace(mysqlDSN)
	if driver == "mysql" && cfg.Database.DSN == "" {
		return fmt.Errorf("mysql driver selected but no DSN provided")
	}

	// --- Step 4: Sync behaviour ---
	fmt.Println(headerStyle.Render("\n  Step 4/4 · Sync"))

	schedule := cfg.Sync.Schedule
	if schedule == "" {
		schedule = "@every 15m"
	}
	attempts := strconv.Itoa(cfg.Sync.MaxAttempts)
	if cfg.Sync.MaxAttempts == 0 {
		attempts = "3"
	}

	syncForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Watch schedule").
				Description("Cron spec used by 'fieldscan sync --watch', e.g. '@every 15m' or '0 * * * *'.").
				Value(&schedule),
			huh.NewInput().
				Title("Upload attempts per event").
				Description("How many times one sync run retries a failing upload.").
				Value(&attempts).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("enter a number of 1 or more")
					}
					return nil
				}),
		),
	)
	if err := syncForm.Run(); err != nil {
		return err
	}
	cfg.Sync.Schedule = strings.TrimSpace(schedule)
	cfg.Sync.MaxAttempts, _ = strconv.Atoi(strings.TrimSpace(attempts))

	// Save config
	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	// Print completion summary
	fmt.Println()
	fmt.Println(headerStyle.Render("  Setup complete!"))
	fmt.Printf("  Config saved to: %s\n\n", dimStyle.Render(cfgPath))

	fmt.Println(dimStyle.Render("  Next steps:"))
	fmt.Println(dimStyle.Render("    fieldscan doctor          — verify storage, database, and backend"))
	fmt.Println(dimStyle.Render("    fieldscan event new       — record your first event"))
	fmt.Println(dimStyle.Render("    fieldscan sync            — upload pending events"))
	fmt.Println(dimStyle.Render("    fieldscan ui              — launch the terminal dashboard"))
	fmt.Println()

	return nil
}
