package core

import (
	"reflect"
	"testing"
	"time"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		def      Mode
		expected Mode
	}{
		{"List", "list", ModeList, ModeList},
		{"Summarize", "summarize", ModeList, ModeSummarize},
		{"Generate", "generate", ModeList, ModeGenerate},
		{"Mixed case", "SuMMaRize", ModeList, ModeSummarize},
		{"Whitespace", "  generate ", ModeList, ModeGenerate},
		{"Unknown falls back", "banana", ModeList, ModeList},
		{"Empty falls back", "", ModeSummarize, ModeSummarize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseMode(tt.input, tt.def); got != tt.expected {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPriorTurns(t *testing.T) {
	tests := []struct {
		name     string
		context  []string
		expected []string
	}{
		{"Nil context", nil, nil},
		{"Plain entries", []string{"first", "second"}, []string{"first", "second"}},
		{"Comma-delimited entry flattened", []string{"a, b", "c"}, []string{"a", "b", "c"}},
		{"Blank segments dropped", []string{" , a, ", ""}, []string{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Request{Context: tt.context}
			if got := r.PriorTurns(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("PriorTurns() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestErrorResponse(t *testing.T) {
	started := time.Now().Add(-50 * time.Millisecond)
	resp := ErrorResponse("id1", "q", ModeList, started, "something failed")

	if resp.Error != "something failed" {
		t.Errorf("Error = %q", resp.Error)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Error("Results should be an empty, non-nil slice")
	}
	if !resp.IsComplete {
		t.Error("IsComplete = false, want true")
	}
	if resp.ProcessingTimeMs < 50 {
		t.Errorf("ProcessingTimeMs = %d, want at least the elapsed time", resp.ProcessingTimeMs)
	}
}
