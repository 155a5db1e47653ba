package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstreamDeterministic(t *testing.T) {
	a := Substream(42, 3, 100)
	b := Substream(42, 3, 100)
	assert.Equal(t, a.Int63(), b.Int63())
}

func TestSubstreamVariesByWorker(t *testing.T) {
	a := Substream(42, 1, 100).Int63()
	b := Substream(42, 2, 100).Int63()
	assert.NotEqual(t, a, b)
}

func TestSubstreamVariesByTick(t *testing.T) {
	a := Substream(42, 1, 100).Int63()
	b := Substream(42, 1, 101).Int63()
	assert.NotEqual(t, a, b)
}
