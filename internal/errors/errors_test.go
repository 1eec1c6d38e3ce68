package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnhancedErrorWrapping(t *testing.T) {
	t.Parallel()

	base := NewStd("port open failed")
	err := New(base).
		Component("router").
		Category(CategoryAudioBackend).
		Context("backend", "midi").
		Build()

	assert.Equal(t, "port open failed", err.Error())
	assert.Equal(t, "router", err.GetComponent())
	assert.Equal(t, string(CategoryAudioBackend), err.GetCategory())
	assert.True(t, Is(err, base))

	ctx := err.GetContext()
	require.NotNil(t, ctx)
	assert.Equal(t, "midi", ctx["backend"])
}

func TestSentinelMatching(t *testing.T) {
	t.Parallel()

	err := New(ErrQueueFull).
		Component("events").
		Category(CategoryQueue).
		Context("capacity", 256).
		Build()

	assert.True(t, Is(err, ErrQueueFull))
	assert.False(t, Is(err, ErrNoFreeSlots))
	assert.True(t, IsCategory(err, CategoryQueue))
	assert.False(t, IsCategory(err, CategoryPlayback))
}

func TestContextCopyIsolation(t *testing.T) {
	t.Parallel()

	err := New(NewStd("boom")).Context("k", "v").Build()

	ctx := err.GetContext()
	ctx["k"] = "mutated"

	assert.Equal(t, "v", err.GetContext()["k"])
}
