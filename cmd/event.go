package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/config"
	"github.com/structiq/fieldscan-agent/internal/database"
	"github.com/structiq/fieldscan-agent/internal/store"
	"github.com/structiq/fieldscan-agent/models"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Record and manage inspection events",
	Long:  `Create, list, inspect, and delete locally recorded inspection events.`,
}

var eventNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Record a new inspection event",
	Long: `Opens the event capture wizard: title, description, and location.
The event is created as a draft; attach media with 'fieldscan attach',
assess it with 'fieldscan risk' and 'fieldscan defect', then queue it
for upload with 'fieldscan event ready'.`,
	RunE: runEventNew,
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events",
	RunE:  runEventList,
}

var eventShowCmd = &cobra.Command{
	Use:   "show <event-id>",
	Short: "Show one event with its attachments, defects, and risk result",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventShow,
}

var eventReadyCmd = &cobra.Command{
	Use:   "ready <event-id>",
	Short: "Mark a draft event ready for sync",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventReady,
}

var eventDeleteCmd = &cobra.Command{
	Use:   "delete <event-id>",
	Short: "Delete an event and its local media",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventDelete,
}

var eventListStatus string

func init() {
	eventListCmd.Flags().StringVar(&eventListStatus, "status", "",
		"filter by status: draft|ready|syncing|synced|failed")
	eventCmd.AddCommand(eventNewCmd, eventListCmd, eventShowCmd, eventReadyCmd, eventDeleteCmd)
}

// openStore loads config and opens the migrated local store. Callers
// must Close() the returned DB.
func openStore(ctx context.Context) (*config.Config, *database.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.EnsureDir(); err != nil {
		return nil, nil, fmt.Errorf("creating fieldscan directories: %w", err)
	}
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return cfg, db, nil
}

func runEventNew(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		title, description, locationRef string
		latStr, lonStr                  string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Description("Short summary, e.g. 'Spalling under girder G3'.").
				Value(&title).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title cannot be empty")
					}
					return nil
				}),
			huh.NewText().
				Title("Description").
				Description("What you observed, in your own words.").
				Value(&description),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Latitude").
				Placeholder("-33.8651").
				Value(&latStr).
				Validate(validateCoord(-90, 90)),
			huh.NewInput().
				Title("Longitude").
				Placeholder("151.2099").
				Value(&lonStr).
				Validate(validateCoord(-180, 180)),
			huh.NewInput().
				Title("Location reference").
				Description("Chainage, asset tag, or free text, e.g. 'Pier 4, east face'.").
				Value(&locationRef),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	lat, _ := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, _ := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	now := time.Now().UTC()
	ev := &models.Event{
		ID:          uuid.New().String(),
		ProjectCode: cfg.Project.Code,
		Inspector:   cfg.Project.Inspector,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Latitude:    lat,
		Longitude:   lon,
		LocationRef: strings.TrimSpace(locationRef),
		Status:      models.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := db.InsertEvent(ctx, ev); err != nil {
		return err
	}
	if _, err := store.New(cfg.Storage.EventsDir).EnsureEventDir(ev.ID); err != nil {
		return err
	}
	slog.Info("event created", "id", ev.ID, "project", ev.ProjectCode)

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Event recorded"))
	fmt.Printf("  ID: %s\n\n", ev.ID)
	fmt.Println(dimStyle.Render(nextStepsHint(ev.ID)))
	return nil
}

func nextStepsHint(id string) string {
	return fmt.Sprintf(`Next steps:
  fieldscan attach add %s <files...>   — add photos or audio
  fieldscan risk --event %s           — run the risk wizard
  fieldscan defect --event %s         — record defect details
  fieldscan event ready %s            — queue for sync`, id, id, id, id)
}

func validateCoord(min, max float64) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil // coordinates optional when GPS unavailable
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if v < min || v > max {
			return fmt.Errorf("out of range [%g, %g]", min, max)
		}
		return nil
	}
}

func runEventList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListEvents(ctx, models.EventStatus(eventListStatus))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events. Record one with: fieldscan event new")
		return nil
	}

	fmt.Printf("%-36s %-4s %-8s %-7s %-16s %s\n", "ID", "PRI", "STATUS", "DEFECTS", "CREATED", "TITLE")
	for _, ev := range events {
		pri := string(ev.Priority)
		if pri == "" {
			pri = "-"
		}
		fmt.Printf("%-36s %-4s %-8s %-7d %-16s %s\n",
			ev.ID, pri, ev.Status, ev.DefectCount,
			ev.CreatedAt.Format("2006-01-02 15:04"), ev.Title)
	}
	return nil
}

func runEventShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Event " + ev.ID))
	fmt.Printf("  Title:      %s\n", ev.Title)
	fmt.Printf("  Project:    %s\n", ev.ProjectCode)
	fmt.Printf("  Inspector:  %s\n", ev.Inspector)
	fmt.Printf("  Location:   %.6f, %.6f  %s\n", ev.Latitude, ev.Longitude, ev.LocationRef)
	fmt.Printf("  Status:     %s\n", ev.Status)
	if ev.Priority != "" {
		fmt.Printf("  Priority:   %s (score %.2f)\n", ev.Priority, ev.RiskScore)
	}
	if ev.SyncedAt != nil {
		fmt.Printf("  Synced:     %s (remote %s)\n", ev.SyncedAt.Format(time.RFC3339), ev.RemoteID)
	}
	if ev.Description != "" {
		fmt.Printf("\n  %s\n", ev.Description)
	}

	atts, err := db.ListAttachments(ctx, ev.ID)
	if err != nil {
		return err
	}
	if len(atts) > 0 {
		fmt.Printf("\nAttachments (%d):\n", len(atts))
		for _, a := range atts {
			fmt.Printf("  [%s] %s (%d bytes)\n", a.Kind, a.FileName, a.SizeBytes)
		}
	}

	defects, err := db.ListDefects(ctx, ev.ID)
	if err != nil {
		return err
	}
	if len(defects) > 0 {
		fmt.Printf("\nDefects (%d):\n", len(defects))
		for _, d := range defects {
			fmt.Printf("  #%d %s\n", d.ID, d.Component)
			for _, line := range strings.Split(strings.TrimRight(d.Summary, "\n"), "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
	}

	jobs, err := db.ListSyncJobs(ctx, ev.ID)
	if err != nil {
		return err
	}
	if len(jobs) > 0 {
		fmt.Printf("\nSync history:\n")
		for _, j := range jobs {
			fmt.Printf("  %s  %s  attempts=%d", j.StartedAt.Format("2006-01-02 15:04"), j.Status, j.Attempts)
			if j.ErrorMsg != "" {
				fmt.Printf("  (%s)", j.ErrorMsg)
			}
			fmt.Println()
		}
	}
	return nil
}

func runEventReady(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(ctx, args[0])
	if err != nil {
		return err
	}
	if ev.Status != models.EventDraft && ev.Status != models.EventFailed {
		fmt.Printf("Event %s is %s; nothing to do.\n", ev.ID, ev.Status)
		return nil
	}
	ev.Status = models.EventReady
	if err := db.UpdateEvent(ctx, ev); err != nil {
		return err
	}
	fmt.Println(successStyle.Render("✓ Event queued for sync"))
	fmt.Println(dimStyle.Render("Run 'fieldscan sync' to upload now."))
	return nil
}

func runEventDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	id := args[0]
	if err := db.DeleteEvent(ctx, id); err != nil {
		return err
	}
	if err := store.New(cfg.Storage.EventsDir).RemoveEvent(id); err != nil {
		return err
	}
	fmt.Printf("Deleted event %s\n", id)
	return nil
}
