package result

import "testing"

func TestNewPagination(t *testing.T) {
	tests := []struct {
		total, size, pages int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		p := NewPagination(1, tt.size, tt.total)
		if p.Pages != tt.pages {
			t.Errorf("total=%d size=%d: pages=%d want %d", tt.total, tt.size, p.Pages, tt.pages)
		}
	}
}
