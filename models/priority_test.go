package models

import "testing"

func TestMapPriority(t *testing.T) {
	cases := []struct {
		raw  string
		want PriorityLevel
	}{
		{"P1", PriorityP1},
		{"p2", PriorityP2},
		{"3", PriorityP3},
		{"P4", PriorityP4},
		{"", PriorityUnknown},
		{"urgent", PriorityUnknown},
	}
	for _, tc := range cases {
		if got := MapPriority(tc.raw); got != tc.want {
			t.Errorf("MapPriority(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}

func TestPriorityWeightOrdering(t *testing.T) {
	order := []PriorityLevel{PriorityP1, PriorityP2, PriorityP3, PriorityP4, PriorityUnknown}
	for i := 1; i < len(order); i++ {
		if order[i-1].Weight() <= order[i].Weight() {
			t.Errorf("%s should outweigh %s", order[i-1], order[i])
		}
	}
}

func TestKindForFile(t *testing.T) {
	cases := []struct {
		name string
		want AttachmentKind
	}{
		{"IMG_0042.JPG", AttachmentPhoto},
		{"note.m4a", AttachmentAudio},
		{"drawing.pdf", AttachmentDocument},
		{"no-extension", AttachmentDocument},
	}
	for _, tc := range cases {
		if got := KindForFile(tc.name); got != tc.want {
			t.Errorf("KindForFile(%q) = %s, want %s", tc.name, got, tc.want)
		}
	}
}
