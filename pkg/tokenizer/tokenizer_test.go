package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"four runes", "abcd", 1},
		{"five runes rounds up", "abcde", 2},
		{"unicode counts runes not bytes", "héllo", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fallbackCount(tt.text))
		})
	}
}
