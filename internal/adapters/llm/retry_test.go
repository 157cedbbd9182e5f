package llm_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utec-cdia-v4/web-chat-ia-v3/internal/adapters/llm"
)

func TestBackoff_NonDecreasingWithoutJitter(t *testing.T) {
	b := llm.NewBackoff(llm.DefaultBackoffBase, llm.DefaultBackoffCap).WithRand(func() float64 { return 0 })

	prev := time.Duration(0)
	for k := 0; k < 64; k++ {
		d := b.Delay(k)
		assert.GreaterOrEqual(t, d, prev, "k=%d", k)
		prev = d
	}
	assert.Equal(t, 500*time.Millisecond, b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, 8*time.Second, b.Delay(1000))
}

func TestBackoff_BoundedByCapPlusJitter(t *testing.T) {
	b := llm.NewBackoff(llm.DefaultBackoffBase, llm.DefaultBackoffCap)

	for k := 0; k < 40; k++ {
		for i := 0; i < 25; i++ {
			d := b.Delay(k)
			assert.Less(t, d, llm.DefaultBackoffCap+llm.DefaultJitter)
			assert.GreaterOrEqual(t, d, min(llm.DefaultBackoffBase<<min(k, 8), llm.DefaultBackoffCap))
		}
	}
}

func TestBackoff_JitterRange(t *testing.T) {
	b := llm.NewBackoff(time.Second, time.Second)

	assert.Equal(t, time.Second, b.WithRand(func() float64 { return 0 }).Delay(0))
	assert.Equal(t, time.Second+100*time.Millisecond, b.WithRand(func() float64 { return 0.5 }).Delay(0))
	assert.Less(t, b.WithRand(func() float64 { return 0.999999 }).Delay(0), time.Second+llm.DefaultJitter)
}

func TestIsTransientStatus(t *testing.T) {
	for _, s := range []int{429, 500, 502, 503, 504} {
		assert.True(t, llm.IsTransientStatus(s), "status %d", s)
	}
	for _, s := range []int{200, 400, 401, 403, 404, 413, 422, 501} {
		assert.False(t, llm.IsTransientStatus(s), "status %d", s)
	}
}
