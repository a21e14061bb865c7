package lsp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		p := Position{Line: rng.Intn(1 << 20), Character: rng.Intn(1 << 16)}
		assert.Equal(t, p, ToEditor(p).ToLSP())

		e := EditorPosition{LineNumber: 1 + rng.Intn(1<<20), Column: 1 + rng.Intn(1<<16)}
		assert.Equal(t, e, ToEditor(e.ToLSP()))
	}
}

func TestPositionConversion(t *testing.T) {
	assert.Equal(t, Position{Line: 0, Character: 0}, EditorPosition{LineNumber: 1, Column: 1}.ToLSP())
	assert.Equal(t, EditorPosition{LineNumber: 3, Column: 5}, ToEditor(Position{Line: 2, Character: 4}))
	assert.False(t, EditorPosition{LineNumber: 0, Column: 1}.Valid())
	assert.True(t, EditorPosition{LineNumber: 1, Column: 1}.Valid())
}

func TestRangeRoundTrip(t *testing.T) {
	r := Range{Start: Position{Line: 1, Character: 2}, End: Position{Line: 1, Character: 9}}
	assert.Equal(t, r, ToEditorRange(r).ToLSP())
	assert.Equal(t, EditorRange{StartLineNumber: 2, StartColumn: 3, EndLineNumber: 2, EndColumn: 10}, ToEditorRange(r))
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: Position{Line: 0, Character: 2}, End: Position{Line: 0, Character: 5}}
	tests := []struct {
		name string
		pos  Position
		want bool
	}{
		{"before", Position{0, 1}, false},
		{"start", Position{0, 2}, true},
		{"inside", Position{0, 4}, true},
		{"end", Position{0, 5}, true},
		{"after", Position{0, 6}, false},
		{"other line", Position{1, 3}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Contains(tt.pos))
		})
	}
}
