package queue

import "testing"

func TestResourceListConflicts(t *testing.T) {
	tests := []struct {
		name string
		a, b ResourceList
		want bool
	}{
		{"both empty", nil, nil, false},
		{"one empty", ResourceList{"gpu"}, nil, false},
		{"disjoint", ResourceList{"gpu"}, ResourceList{"disk"}, false},
		{"overlap", ResourceList{"gpu", "disk"}, ResourceList{"disk"}, true},
		{"identical", ResourceList{"gpu"}, ResourceList{"gpu"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Conflicts(tt.b); got != tt.want {
				t.Errorf("%v.Conflicts(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestStripNilActions(t *testing.T) {
	in := []Action{nil, alwaysDistinct{}, nil}
	out := stripNilActions(in)
	if len(out) != 1 {
		t.Fatalf("expected nils stripped, got %d remaining", len(out))
	}
}

type labelAction struct {
	label string
}

func (l labelAction) AssignedLabel(task Task) (string, bool) { return l.label, true }

func TestEffectiveLabelPrefersActionOverride(t *testing.T) {
	task := newFakeTask("t")
	task.label = "default-label"

	if got := effectiveLabel(task, nil); got != "default-label" {
		t.Fatalf("expected task's own label with no actions, got %q", got)
	}

	got := effectiveLabel(task, []Action{labelAction{label: "override"}})
	if got != "override" {
		t.Fatalf("expected action override to win, got %q", got)
	}
}
