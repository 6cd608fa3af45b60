package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealTimeProvider_Now(t *testing.T) {
	provider := RealTimeProvider{}
	before := time.Now()
	result := provider.Now()
	after := time.Now()

	assert.False(t, result.Before(before))
	assert.False(t, result.After(after))
}

func TestRealTimeProvider_Ticker(t *testing.T) {
	ticker := RealTimeProvider{}.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		require.Fail(t, "ticker never fired")
	}
}

type fixedProvider struct{ at time.Time }

func (f fixedProvider) Now() time.Time                 { return f.at }
func (f fixedProvider) NewTicker(time.Duration) Ticker { return nil }

func TestResolve(t *testing.T) {
	fixed := fixedProvider{at: time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)}

	assert.Equal(t, fixed, Resolve(fixed))
	assert.Equal(t, fixed.at, Resolve(fixed).Now())
	assert.IsType(t, RealTimeProvider{}, Resolve(nil))
}
