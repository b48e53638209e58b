package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"trims whitespace", []string{" broker-1:9092 ", "broker-2:9092"}, []string{"broker-1:9092", "broker-2:9092"}},
		{"drops duplicates preserving order", []string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
		{"drops empties", []string{"topic", "", "  ", "other"}, []string{"topic", "other"}},
		{"preserves case", []string{"Topic", "topic"}, []string{"Topic", "topic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
