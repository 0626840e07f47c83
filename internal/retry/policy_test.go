package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/discourse-import/internal/config"
)

// TestDefaultPolicy verifies the baseline default values.
func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, config.RetryBackoffLinear, p.Mode)
	require.Equal(t, time.Second, p.Initial)
	require.Equal(t, 30*time.Second, p.Max)
	require.Zero(t, p.MaxRetries)
}

// TestNewPolicyOverrides checks override precedence and clamping when initial > max.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 5)
	require.Equal(t, 2*time.Second, p.Initial)
	require.Equal(t, 2*time.Second, p.Max)
	require.Equal(t, config.RetryBackoffFixed, p.Mode)
	require.Equal(t, 5, p.MaxRetries)
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.HTTPConfig{Retries: 3, RetryBackoff: "Exponential", RetryInitialDelay: 10 * time.Millisecond})
	require.Equal(t, config.RetryBackoffExponential, p.Mode)
	require.Equal(t, 3, p.MaxRetries)
	require.Equal(t, 10*time.Millisecond, p.Initial)
}

// TestDelayModes ensures fixed, linear, exponential behave and respect cap.
func TestDelayModes(t *testing.T) {
	fixed := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 500*time.Millisecond, 3)
	for i := 1; i <= 3; i++ {
		require.Equal(t, 100*time.Millisecond, fixed.Delay(i), "fixed attempt %d", i)
	}

	cases := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{"linear 1", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 1, 100 * time.Millisecond},
		{"linear 2", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 2, 200 * time.Millisecond},
		{"linear capped", NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 250*time.Millisecond, 5), 3, 250 * time.Millisecond},
		{"exp 1", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 1, 50 * time.Millisecond},
		{"exp 2", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 2, 100 * time.Millisecond},
		{"exp capped", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 3, 160 * time.Millisecond},
		{"exp huge attempt", NewPolicy(config.RetryBackoffExponential, 50*time.Millisecond, 160*time.Millisecond, 5), 64, 160 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.policy.Delay(tc.attempt))
		})
	}
}

// TestDelayEdgeCases ensures non-positive attempts yield zero.
func TestDelayEdgeCases(t *testing.T) {
	p := NewPolicy(config.RetryBackoffLinear, 10*time.Millisecond, 20*time.Millisecond, 1)
	require.Zero(t, p.Delay(0))
	require.Zero(t, p.Delay(-1))
}

// TestValidate covers validation error paths.
func TestValidate(t *testing.T) {
	require.Error(t, Policy{Mode: config.RetryBackoffLinear, Initial: 0, Max: time.Second}.Validate())
	require.Error(t, Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 0}.Validate())
	require.Error(t, Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second, MaxRetries: -1}.Validate())
	require.NoError(t, Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 2 * time.Second}.Validate())
}

// TestUnknownModeFallsBack leaves mode default when unknown string supplied.
func TestUnknownModeFallsBack(t *testing.T) {
	p := NewPolicy("weird", 250*time.Millisecond, 500*time.Millisecond, 1)
	require.Equal(t, config.RetryBackoffLinear, p.Mode)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, func(error) bool { return true })
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 5)
	calls := 0
	permanent := errors.New("not found")
	err := p.Do(t.Context(), func() error {
		calls++
		return permanent
	}, func(error) bool { return false })
	require.ErrorIs(t, err, permanent)
	require.Equal(t, 1, calls)
}

func TestDo_ExhaustsBudget(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 2)
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errors.New("down")
	}, func(error) bool { return true })
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestDo_CancelledWhileWaiting(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, time.Hour, time.Hour, 3)
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("down")
	}, func(error) bool { return true })
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDo_InvalidPolicyRunsOnce(t *testing.T) {
	p := Policy{Mode: config.RetryBackoffFixed, MaxRetries: 3}
	require.Error(t, p.Validate())
	calls := 0
	err := p.Do(t.Context(), func() error {
		calls++
		return errors.New("down")
	}, func(error) bool { return true })
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestFromConfig_AlwaysValid(t *testing.T) {
	for _, cfg := range []config.HTTPConfig{
		{},
		{Retries: -2, RetryInitialDelay: -time.Second, RetryMaxDelay: -time.Second},
		{Retries: 4, RetryInitialDelay: time.Minute, RetryMaxDelay: time.Second},
	} {
		require.NoError(t, FromConfig(cfg).Validate())
	}
}
