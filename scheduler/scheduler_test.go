package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbwatch/errs"
)

func TestRunOnceBumpsFailuresHarderOnRateLimit(t *testing.T) {
	d, err := NewDriver()
	require.NoError(t, err)

	job := Job{Name: "venue", Run: func(ctx context.Context) error {
		return errs.Wrap(errs.RateLimited, "venue", "status 429", nil)
	}}
	d.runOnce(context.Background(), job)

	assert.Equal(t, 3, d.failures["venue"], "a rate-limited failure should count as more than one plain failure")
}

func TestRunOnceBumpsFailuresByOneOnPlainError(t *testing.T) {
	d, err := NewDriver()
	require.NoError(t, err)

	job := Job{Name: "venue", Run: func(ctx context.Context) error {
		return errs.Wrap(errs.Transient, "venue", "connection reset", nil)
	}}
	d.runOnce(context.Background(), job)

	assert.Equal(t, 1, d.failures["venue"])
}

func TestRunOnceResetsFailuresOnSuccess(t *testing.T) {
	d, err := NewDriver()
	require.NoError(t, err)
	d.failures["venue"] = 4

	ran := false
	job := Job{Name: "venue", Run: func(ctx context.Context) error { ran = true; return nil }}
	// With a streak of 4 the backoff multiplier is 5, so runOnce skips the
	// job with probability 0.8; call it until the job has actually run.
	for !ran {
		d.runOnce(context.Background(), job)
	}

	assert.Equal(t, 0, d.failures["venue"])
}
