// Package defectform models the structural-defect-details wizard: a
// fixed multi-step field layout over a flat key-value store, with
// per-step textual summaries for review screens and sync payloads.
package defectform

import (
	"fmt"
	"strings"
)

// Field is a single entry in the defect form.
type Field struct {
	Key      string
	Label    string
	Required bool
	Options  []string // non-empty for select fields
}

// Step groups fields the wizard presents together.
type Step struct {
	ID     string
	Title  string
	Fields []Field
}

// Form holds answers keyed by field key. The step layout is fixed;
// only the values vary per defect.
type Form struct {
	steps  []Step
	values map[string]string
}

// New returns an empty structural-defect form.
func New() *Form {
	return &Form{steps: defectSteps, values: make(map[string]string)}
}

// defectSteps is the structural-defect wizard layout.
var defectSteps = []Step{
	{
		ID:    "identification",
		Title: "Defect identification",
		Fields: []Field{
			{Key: "component", Label: "Component", Required: true,
				Options: []string{"girder", "pier", "deck", "abutment", "bearing", "joint", "barrier", "other"}},
			{Key: "defect_type", Label: "Defect type", Required: true,
				Options: []string{"crack", "spalling", "corrosion", "deformation", "settlement", "scour", "other"}},
			{Key: "material", Label: "Material",
				Options: []string{"concrete", "steel", "timber", "masonry", "composite"}},
		},
	},
	{
		ID:    "dimensions",
		Title: "Dimensions",
		Fields: []Field{
			{Key: "length_mm", Label: "Length (mm)", Required: true},
			{Key: "width_mm", Label: "Width (mm)"},
			{Key: "depth_mm", Label: "Depth (mm)"},
			{Key: "crack_width_mm", Label: "Crack width (mm)"},
		},
	},
	{
		ID:    "condition",
		Title: "Condition observations",
		Fields: []Field{
			{Key: "extent", Label: "Extent", Required: true,
				Options: []string{"isolated", "several locations", "widespread"}},
			{Key: "active", Label: "Actively deteriorating",
				Options: []string{"yes", "no", "unknown"}},
			{Key: "notes", Label: "Observation notes"},
		},
	},
	{
		ID:    "remediation",
		Title: "Remediation",
		Fields: []Field{
			{Key: "recommended_action", Label: "Recommended action", Required: true},
			{Key: "access_required", Label: "Access required",
				Options: []string{"none", "ladder", "elevated platform", "rope access", "traffic control"}},
			{Key: "estimated_cost", Label: "Estimated cost"},
		},
	},
}

// Steps returns the fixed step layout.
func (f *Form) Steps() []Step {
	return f.steps
}

// Field returns the field definition for key, or nil.
func (f *Form) Field(key string) *Field {
	for si := range f.steps {
		for fi := range f.steps[si].Fields {
			if f.steps[si].Fields[fi].Key == key {
				return &f.steps[si].Fields[fi]
			}
		}
	}
	return nil
}

// Set records an answer. Unknown keys and values outside a select
// field's options are rejected.
func (f *Form) Set(key, value string) error {
	fld := f.Field(key)
	if fld == nil {
		return fmt.Errorf("unknown defect field %q", key)
	}
	value = strings.TrimSpace(value)
	if value != "" && len(fld.Options) > 0 {
		ok := false
		for _, o := range fld.Options {
			if o == value {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("field %q: %q is not one of %s", key, value, strings.Join(fld.Options, ", "))
		}
	}
	f.values[key] = value
	return nil
}

// Get returns the recorded answer for key ("" when unset).
func (f *Form) Get(key string) string {
	return f.values[key]
}

// Values returns a copy of all non-empty answers.
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Restore loads previously stored answers, ignoring unknown keys so
// records written by newer layouts still open.
func (f *Form) Restore(values map[string]string) {
	for k, v := range values {
		if f.Field(k) != nil {
			f.values[k] = v
		}
	}
}

// MissingRequired lists required fields of step i that are still empty.
func (f *Form) MissingRequired(i int) []string {
	if i < 0 || i >= len(f.steps) {
		return nil
	}
	var missing []string
	for _, fld := range f.steps[i].Fields {
		if fld.Required && strings.TrimSpace(f.values[fld.Key]) == "" {
			missing = append(missing, fld.Key)
		}
	}
	return missing
}

// Complete reports whether every required field in every step is set.
func (f *Form) Complete() bool {
	for i := range f.steps {
		if len(f.MissingRequired(i)) > 0 {
			return false
		}
	}
	return true
}

// StepSummary renders a textual summary of one step, skipping unset
// fields. Returns "" when the step has no answers.
func (f *Form) StepSummary(i int) string {
	if i < 0 || i >= len(f.steps) {
		return ""
	}
	var b strings.Builder
	for _, fld := range f.steps[i].Fields {
		v := f.values[fld.Key]
		if v == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", fld.Label, v)
	}
	if b.Len() == 0 {
		return ""
	}
	return f.steps[i].Title + "\n" + b.String()
}

// Summary renders the whole form, one block per answered step.
func (f *Form) Summary() string {
	var blocks []string
	for i := range f.steps {
		if s := f.StepSummary(i); s != "" {
			blocks = append(blocks, strings.TrimRight(s, "\n"))
		}
	}
	return strings.Join(blocks, "\n\n")
}
