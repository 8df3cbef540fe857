package runs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsKreuzberg_RoutesKnownBinaryExtensions(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"report.pdf", true},
		{"slides.pptx", true},
		{"memo.docx", true},
		{"notes.txt", false},
		{"data.csv", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, needsKreuzberg("", tt.filename), tt.filename)
	}
}
