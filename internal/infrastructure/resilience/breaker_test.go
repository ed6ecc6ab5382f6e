package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSpawn = errors.New("spawn failed")

// fakeClock lets tests move past the cooldown without sleeping
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold uint32, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := New("restart", Settings{Threshold: threshold, Cooldown: cooldown})
	b.now = clock.now
	return b, clock
}

func fail() error    { return errSpawn }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		threshold     uint32
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{"stays closed on successes", 2, []bool{true, true, true}, StateClosed},
		{"stays closed below threshold", 3, []bool{false, false}, StateClosed},
		{"success resets the run", 2, []bool{false, true, false}, StateClosed},
		{"opens after consecutive failures", 3, []bool{false, false, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(tt.threshold, time.Minute)
			for _, success := range tt.requests {
				if success {
					b.Do(succeed)
				} else {
					b.Do(fail)
				}
			}
			assert.Equal(t, tt.expectedState, b.State())
		})
	}
}

func TestBreakerOpenRejectsWithoutRunning(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	b.Do(fail)
	b.Do(fail)
	require.Equal(t, StateOpen, b.State())

	ran := false
	err := b.Do(func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	assert.ErrorIs(t, b.Do(fail), errSpawn)
	require.Equal(t, StateOpen, b.State())

	clock.advance(59 * time.Second)
	assert.Equal(t, StateOpen, b.State())

	clock.advance(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	// a failed trial reopens for another cooldown
	assert.ErrorIs(t, b.Do(fail), errSpawn)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(succeed), ErrCircuitOpen)

	clock.advance(time.Minute)
	require.NoError(t, b.Do(succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, uint32(0), b.Failures())
}

func TestBreakerSingleTrial(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	b.Do(fail)
	clock.advance(time.Second)

	err := b.Do(func() error {
		// a second caller during the trial is refused
		assert.ErrorIs(t, b.Do(succeed), ErrCircuitOpen)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	b := New("restart", Settings{
		Threshold: 2,
		Cooldown:  10 * time.Second,
		OnStateChange: func(name string, from State, to State) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	b.now = clock.now

	b.Do(fail)
	b.Do(fail)
	clock.advance(10 * time.Second)
	b.Do(succeed)

	assert.Equal(t, []string{
		"restart:closed->open",
		"restart:open->half-open",
		"restart:half-open->closed",
	}, transitions)
}

func TestBreakerRecoversFromPanic(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)

	assert.Panics(t, func() {
		b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestNilBreakerRunsEverything(t *testing.T) {
	var b *Breaker
	assert.ErrorIs(t, b.Do(fail), errSpawn)
	assert.NoError(t, b.Do(succeed))
}

func TestDefaults(t *testing.T) {
	b := New("restart", Settings{})
	assert.Equal(t, "restart", b.Name())
	assert.Equal(t, uint32(3), b.settings.Threshold)
	assert.Equal(t, 30*time.Second, b.settings.Cooldown)
}
