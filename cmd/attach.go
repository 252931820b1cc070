package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/store"
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Manage event media attachments",
}

var attachAddCmd = &cobra.Command{
	Use:   "add <event-id> <file>...",
	Short: "Copy photos, audio, or documents into an event",
	Long: `Copies the given files into the event's local media directory and
records them for upload. Name clashes get a numeric suffix; the files
are hashed so the backend can verify the upload.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAttachAdd,
}

var attachListCmd = &cobra.Command{
	Use:   "list <event-id>",
	Short: "List an event's attachments",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttachList,
}

func init() {
	attachCmd.AddCommand(attachAddCmd, attachListCmd)
}

func runAttachAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(ctx, args[0])
	if err != nil {
		return err
	}

	st := store.New(cfg.Storage.EventsDir)
	for _, path := range args[1:] {
		att, err := st.AddMedia(ev.ID, path)
		if err != nil {
			return err
		}
		if err := db.InsertAttachment(ctx, att); err != nil {
			return err
		}
		fmt.Printf("%s [%s] %s (%d bytes, sha256 %.12s)\n",
			successStyle.Render("✓"), att.Kind, att.FileName, att.SizeBytes, att.SHA256)
	}
	return nil
}

func runAttachList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	atts, err := db.ListAttachments(ctx, args[0])
	if err != nil {
		return err
	}
	if len(atts) == 0 {
		fmt.Println("No attachments.")
		return nil
	}
	fmt.Printf("%-10s %-30s %10s  %s\n", "KIND", "FILE", "SIZE", "SHA256")
	for _, a := range atts {
		fmt.Printf("%-10s %-30s %10d  %.12s\n", a.Kind, a.FileName, a.SizeBytes, a.SHA256)
	}
	return nil
}
