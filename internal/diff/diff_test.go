package diff

import (
	"strings"
	"testing"
)

func TestLinesCountsChanges(t *testing.T) {
	before := "Final score: 72 (B-)\nMissed: baseboards\nRework: baseboards\n"
	after := "Final score: 88 (A-)\nRework: baseboards\n"
	delta := Lines(before, after)
	if delta.Added != 1 || delta.Removed != 2 {
		t.Fatalf("expected 1 added and 2 removed, got +%d -%d", delta.Added, delta.Removed)
	}
	if delta.Empty() {
		t.Fatalf("expected a non-empty delta")
	}
	changes := delta.Changes()
	if !strings.Contains(changes, "- Final score: 72 (B-)") || !strings.Contains(changes, "+ Final score: 88 (A-)") {
		t.Fatalf("unexpected changes:\n%s", changes)
	}
	if strings.Contains(changes, "Rework: baseboards") {
		t.Fatalf("context lines should not be rendered:\n%s", changes)
	}
}

func TestLinesIdentical(t *testing.T) {
	delta := Lines("a\nb\n", "a\nb\n")
	if !delta.Empty() || delta.Changes() != "" {
		t.Fatalf("expected empty delta, got %#v", delta)
	}
	for _, line := range delta.Lines {
		if line.Type != LineContext {
			t.Fatalf("expected only context lines")
		}
	}
}
