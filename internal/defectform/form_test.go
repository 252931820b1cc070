package defectform

import (
	"strings"
	"testing"
)

func TestSetRejectsUnknownKeyAndBadOption(t *testing.T) {
	f := New()

	if err := f.Set("no_such_field", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := f.Set("component", "spaceship"); err == nil {
		t.Error("expected error for value outside select options")
	}
	if err := f.Set("component", "girder"); err != nil {
		t.Errorf("valid option rejected: %v", err)
	}
	// Free-text fields accept anything.
	if err := f.Set("notes", "hairline crack along the web"); err != nil {
		t.Errorf("free text rejected: %v", err)
	}
	// Clearing a select field is always allowed.
	if err := f.Set("material", ""); err != nil {
		t.Errorf("clearing field rejected: %v", err)
	}
}

func fillRequired(t *testing.T, f *Form) {
	t.Helper()
	for k, v := range map[string]string{
		"component":          "pier",
		"defect_type":        "spalling",
		"length_mm":          "450",
		"extent":             "isolated",
		"recommended_action": "Patch repair and seal",
	} {
		if err := f.Set(k, v); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
}

func TestCompleteAndMissingRequired(t *testing.T) {
	f := New()
	if f.Complete() {
		t.Fatal("empty form reported complete")
	}

	missing := f.MissingRequired(0)
	if len(missing) != 2 {
		t.Fatalf("step 0 missing = %v, want component and defect_type", missing)
	}

	fillRequired(t, f)
	if !f.Complete() {
		t.Fatal("form with all required fields reported incomplete")
	}
	for i := range f.Steps() {
		if m := f.MissingRequired(i); len(m) != 0 {
			t.Errorf("step %d still missing %v", i, m)
		}
	}
}

func TestStepSummarySkipsEmptyFields(t *testing.T) {
	f := New()
	fillRequired(t, f)

	s := f.StepSummary(1) // dimensions
	if !strings.Contains(s, "Length (mm): 450") {
		t.Errorf("summary missing length: %q", s)
	}
	if strings.Contains(s, "Width") || strings.Contains(s, "Depth") {
		t.Errorf("summary includes unset fields: %q", s)
	}

	// A step with no answers renders as nothing at all.
	empty := New()
	if s := empty.StepSummary(2); s != "" {
		t.Errorf("empty step summary = %q, want \"\"", s)
	}
}

func TestSummaryJoinsAnsweredSteps(t *testing.T) {
	f := New()
	fillRequired(t, f)

	sum := f.Summary()
	for _, want := range []string{"Defect identification", "Dimensions", "Remediation", "pier", "spalling"} {
		if !strings.Contains(sum, want) {
			t.Errorf("summary missing %q:\n%s", want, sum)
		}
	}
	if strings.Contains(sum, "Condition observations") {
		t.Errorf("summary includes unanswered step:\n%s", sum)
	}
}

func TestValuesAndRestoreRoundTrip(t *testing.T) {
	f := New()
	fillRequired(t, f)

	vals := f.Values()
	if _, ok := vals["width_mm"]; ok {
		t.Error("Values includes empty field")
	}

	restored := New()
	restored.Restore(vals)
	if restored.Get("component") != "pier" {
		t.Fatalf("restored component = %q", restored.Get("component"))
	}
	if !restored.Complete() {
		t.Fatal("restored form incomplete")
	}

	// Unknown keys from newer layouts are dropped, not fatal.
	restored.Restore(map[string]string{"future_field": "x"})
	if restored.Get("future_field") != "" {
		t.Fatal("unknown key survived restore")
	}
}
