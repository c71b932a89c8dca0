package item

import (
	"testing"
	"time"
)

func TestWindowContains(t *testing.T) {
	end := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	w := NewWindow(end, 48*time.Hour)

	if !w.Contains(end) {
		t.Error("Expected window to contain its end")
	}
	if !w.Contains(end.Add(-48 * time.Hour)) {
		t.Error("Expected window to contain its start")
	}
	if w.Contains(end.Add(-72 * time.Hour)) {
		t.Error("Expected item three days old to be outside a two day window")
	}
	if w.Contains(end.Add(time.Minute)) {
		t.Error("Expected future timestamp to be outside the window")
	}
	if w.Duration() != 48*time.Hour {
		t.Errorf("Expected duration 48h, got %v", w.Duration())
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(string(c))
		if err != nil {
			t.Errorf("Expected %q to parse, got error: %v", c, err)
		}
		if got != c {
			t.Errorf("Expected %q, got %q", c, got)
		}
	}

	if _, err := ParseCategory("podcast"); err == nil {
		t.Error("Expected error for unknown category")
	}
}

func TestCategoriesReturnsCopy(t *testing.T) {
	cats := Categories()
	cats[0] = "mutated"

	if Categories()[0] != CategoryResearch {
		t.Error("Expected Categories to return an independent copy")
	}
}
