package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitterMillis_WithinInclusiveRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		v := JitterMillis(100, 105)
		assert.GreaterOrEqual(t, v, 100)
		assert.LessOrEqual(t, v, 105)
	}
}

func TestJitterMillis_EqualBoundsReturnsThatValue(t *testing.T) {
	assert.Equal(t, 50, JitterMillis(50, 50))
}

func TestJitterMillis_MinGreaterThanMaxReturnsMin(t *testing.T) {
	assert.Equal(t, 50, JitterMillis(50, 10))
}

func TestThreadStagger_DividesEvenlyAcrossThreads(t *testing.T) {
	d := ThreadStagger(4*time.Second, 4)
	assert.Equal(t, time.Second, d)
}

func TestThreadStagger_ZeroThreadsIsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), ThreadStagger(time.Second, 0))
}

func TestConnRampDelay_PastWindowReturnsBase(t *testing.T) {
	d := ConnRampDelay(2*time.Second, 3*time.Second, 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, d)
}

func TestConnRampDelay_NoWindowReturnsBase(t *testing.T) {
	d := ConnRampDelay(0, time.Second, 100*time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, d)
}

func TestConnRampDelay_WithinWindowExceedsBase(t *testing.T) {
	base := 100 * time.Millisecond
	d := ConnRampDelay(2*time.Second, 500*time.Millisecond, base)
	assert.Greater(t, d, base)
}

func TestConnRampDelay_MonotonicallyShrinksTowardBase(t *testing.T) {
	base := 10 * time.Millisecond
	rampUp := 2 * time.Second
	early := ConnRampDelay(rampUp, 100*time.Millisecond, base)
	late := ConnRampDelay(rampUp, 1900*time.Millisecond, base)
	assert.Greater(t, early, late)
	assert.GreaterOrEqual(t, late, base)
}
