package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/structiq/fieldscan-agent/internal/defectform"
	"github.com/structiq/fieldscan-agent/models"
)

var defectEventID string

var defectCmd = &cobra.Command{
	Use:   "defect",
	Short: "Record structural defect details for an event",
	Long: `Opens the structural-defect wizard: identification, dimensions,
condition observations, and remediation. An event can carry any number
of defect records; each is uploaded with the event on sync.`,
	RunE: runDefect,
}

func init() {
	defectCmd.Flags().StringVar(&defectEventID, "event", "", "event ID to attach the defect to (required)")
	_ = defectCmd.MarkFlagRequired("event")
}

func runDefect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	ev, err := db.GetEvent(ctx, defectEventID)
	if err != nil {
		return err
	}

	form := defectform.New()
	steps := form.Steps()

	fmt.Println(headerStyle.Render("Structural defect — " + ev.Title))
	fmt.Println()

	// One buffer per field; huh needs stable pointers across the form run.
	buf := make(map[string]*string)
	var groups []*huh.Group
	for si, step := range steps {
		var fields []huh.Field
		for _, fld := range step.Fields {
			v := new(string)
			buf[fld.Key] = v
			if len(fld.Options) > 0 {
				opts := make([]huh.Option[string], 0, len(fld.Options)+1)
				if !fld.Required {
					opts = append(opts, huh.NewOption("(skip)", ""))
				}
				for _, o := range fld.Options {
					opts = append(opts, huh.NewOption(o, o))
				}
				fields = append(fields, huh.NewSelect[string]().
					Title(fld.Label).
					Options(opts...).
					Value(v))
				continue
			}
			in := huh.NewInput().Title(fld.Label).Value(v)
			if fld.Required {
				in = in.Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("required")
					}
					return nil
				})
			}
			if strings.HasSuffix(fld.Key, "_mm") || fld.Key == "estimated_cost" {
				in = in.Placeholder("number").Validate(validateOptionalNumber(fld.Required))
			}
			fields = append(fields, in)
		}
		groups = append(groups, huh.NewGroup(fields...).
			Title(fmt.Sprintf("Step %d/%d · %s", si+1, len(steps), step.Title)))
	}

	if err := huh.NewForm(groups...).Run(); err != nil {
		return err
	}

	for key, v := range buf {
		if err := form.Set(key, *v); err != nil {
			return err
		}
	}
	if !form.Complete() {
		return fmt.Errorf("defect record incomplete: required fields missing")
	}

	rec := &models.DefectRecord{
		EventID:   ev.ID,
		Component: form.Get("component"),
		Fields:    form.Values(),
		Summary:   form.Summary(),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.InsertDefect(ctx, rec); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(successStyle.Render("✓ Defect recorded"))
	fmt.Println()
	for _, line := range strings.Split(rec.Summary, "\n") {
		fmt.Printf("  %s\n", line)
	}
	return nil
}

func validateOptionalNumber(required bool) func(string) error {
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			if required {
				return fmt.Errorf("required")
			}
			return nil
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return fmt.Errorf("not a number")
		}
		return nil
	}
}
