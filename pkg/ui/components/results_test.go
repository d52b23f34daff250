package components

import (
	"fmt"
	"strings"
	"testing"
)

func TestResultsComponent_NewestFirstAndCapped(t *testing.T) {
	r := NewResultsComponent(3, 2)
	for i := 0; i < 5; i++ {
		r.Add(ResultRow{Swap: fmt.Sprintf("swap-%d", i)})
	}
	if r.Len() != 3 {
		t.Fatalf("len = %d, want 3", r.Len())
	}
	if r.rows[0].Swap != "swap-4" || r.rows[2].Swap != "swap-2" {
		t.Errorf("order = %v", r.rows)
	}
}

func TestResultsComponent_Scroll(t *testing.T) {
	r := NewResultsComponent(10, 2)
	for i := 0; i < 4; i++ {
		r.Add(ResultRow{Swap: fmt.Sprintf("swap-%d", i)})
	}

	r.ScrollUp()
	if r.offset != 0 {
		t.Errorf("offset = %d after scrolling above the top", r.offset)
	}
	r.ScrollDown()
	r.ScrollDown()
	r.ScrollDown()
	if r.offset != 2 {
		t.Errorf("offset = %d, want 2", r.offset)
	}

	view := r.View()
	if !strings.Contains(view, "swap-1") || strings.Contains(view, "swap-3") {
		t.Errorf("view shows the wrong window:\n%s", view)
	}

	r.Add(ResultRow{Swap: "new"})
	if r.offset != 0 {
		t.Error("new result did not reset scroll")
	}
}

func TestResultsComponent_Empty(t *testing.T) {
	if !strings.Contains(NewResultsComponent(5, 5).View(), "No swap requests yet") {
		t.Error("empty view missing placeholder")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
