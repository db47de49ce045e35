package notify

import (
	"testing"

	"token-radar/internal/storage"
)

func TestDecideNewCreation(t *testing.T) {
	tests := []struct {
		name     string
		recorded bool
		sub      bool
		want     bool
	}{
		{"first sighting with signal", true, true, true},
		{"first sighting without signal", true, false, false},
		{"repeat sighting with signal", false, true, false},
		{"repeat sighting without signal", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideNewCreation(storage.CreationResult{Recorded: tt.recorded}, tt.sub)
			if got != tt.want {
				t.Errorf("DecideNewCreation(recorded=%v, sub=%v) = %v, want %v",
					tt.recorded, tt.sub, got, tt.want)
			}
		})
	}
}

func TestDecideCompleted(t *testing.T) {
	tests := []struct {
		name string
		res  storage.CompletionResult
		want bool
	}{
		{"direct completion passes filter", storage.CompletionResult{Recorded: true, Notify: true}, true},
		{"direct completion fails filter", storage.CompletionResult{Recorded: true, Notify: false}, false},
		{"upgrade passes filter", storage.CompletionResult{Upgraded: true, Notify: true}, true},
		{"upgrade fails filter", storage.CompletionResult{Upgraded: true, Notify: false}, false},
		{"already completed", storage.CompletionResult{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideCompleted(tt.res)
			if got != tt.want {
				t.Errorf("DecideCompleted(%+v) = %v, want %v", tt.res, got, tt.want)
			}
		})
	}
}
