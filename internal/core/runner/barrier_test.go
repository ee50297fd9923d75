package runner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierFiresOnlyAfterAllSignals(t *testing.T) {
	b := NewBarrier()
	fired := 0
	b.AddParticipants(3)
	b.AddCallback(func(any) { fired++ }, nil)

	b.Signal()
	b.Signal()
	assert.Zero(t, fired)
	assert.Equal(t, 1, b.Participants())

	b.Signal()
	assert.Equal(t, 1, fired)
	require.NoError(t, b.Wait())
}

func TestBarrierCallbacksAreOneShot(t *testing.T) {
	b := NewBarrier()
	fired := 0
	b.AddParticipants(1)
	b.AddCallback(func(any) { fired++ }, nil)
	b.Signal()

	b.AddParticipants(1)
	b.Signal()
	assert.Equal(t, 1, fired)
}

func TestBarrierThrowKeepsFirstError(t *testing.T) {
	first := errors.New("first")
	b := NewBarrier()
	b.AddParticipants(2)
	b.Throw(first)
	b.Throw(errors.New("second"))
	assert.Same(t, first, b.Wait())
}

func TestBarrierOverSignalPanics(t *testing.T) {
	b := NewBarrier()
	assert.Panics(t, func() { b.Signal() })
}

func TestBarrierReleaseResets(t *testing.T) {
	b := AcquireBarrier()
	b.AddParticipants(1)
	b.Throw(errors.New("x"))
	require.Error(t, b.Wait())
	b.Release()

	again := AcquireBarrier()
	assert.NoError(t, again.Err())
	assert.Zero(t, again.Participants())
	again.Release()
}

func TestBarrierReleaseWithParticipantsPanics(t *testing.T) {
	b := NewBarrier()
	b.AddParticipants(1)
	assert.Panics(t, func() { b.Release() })
}
