package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{DetectShadows: true, OpenIterations: 1, DilateIterations: 2}.Normalize())

	c := Config{History: 100, VarThreshold: 16, KernelSize: 3, OpenIterations: -1, DilateIterations: 0, MinArea: 50}.Normalize()
	assert.Equal(t, 100, c.History)
	assert.Equal(t, 16.0, c.VarThreshold)
	assert.Equal(t, 3, c.KernelSize)
	assert.Equal(t, 1, c.OpenIterations, "negative falls back")
	assert.Equal(t, 0, c.DilateIterations, "zero disables dilation")
	assert.Equal(t, 50.0, c.MinArea)
	assert.False(t, c.DetectShadows)
}
