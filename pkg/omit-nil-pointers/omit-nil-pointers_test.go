package omitnilpointers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOmitNilPointers(t *testing.T) {
	var nilInt *int
	index := 2
	playing := false
	pp := &index

	got := OmitNilPointers(map[string]any{
		"nil":         nil,
		"nil_pointer": nilInt,
		"index":       &index,
		"is_playing":  &playing,
		"nested":      &pp,
		"plain":       int64(10),
	})

	assert.Equal(t, map[string]any{
		"index":      2,
		"is_playing": false,
		"nested":     2,
		"plain":      int64(10),
	}, got)
}
