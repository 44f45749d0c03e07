package gemini

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pacwatch/internal/ratelimit"
)

func TestParsePolarity(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"0.4", 0.4},
		{"-0.75\n", -0.75},
		{"Score: -1", -1},
		{"1.8", 1},
		{"-3", -1},
		{".5", 0.5},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := parsePolarity(tt.reply)
		require.NoError(t, err, tt.reply)
		assert.InDelta(t, tt.want, got, 1e-9, tt.reply)
	}

	_, err := parsePolarity("neutral")
	assert.Error(t, err)
}

func TestBuildPrompt_Truncates(t *testing.T) {
	prompt := buildPrompt(strings.Repeat("word ", 2000))
	assert.Less(t, len([]rune(prompt)), maxPromptRunes+300)
	assert.Contains(t, prompt, "single number")
}

func TestPolarity(t *testing.T) {
	var prompts []string
	c := newClient(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "-0.6", nil
	}, nil, nil)

	got, err := c.Polarity(context.Background(), "China condemned the drills.")
	require.NoError(t, err)
	assert.Equal(t, -0.6, got)
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "China condemned the drills.")
}

func TestPolarity_RetriesTransientError(t *testing.T) {
	calls := 0
	c := newClient(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("503")
		}
		return "0.2", nil
	}, nil, nil)
	c.retry.Delay = 0

	got, err := c.Polarity(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 0.2, got)
	assert.Equal(t, 2, calls)
}

func TestPolarity_BudgetExhausted(t *testing.T) {
	calls := 0
	c := newClient(func(context.Context, string) (string, error) {
		calls++
		return "0", nil
	}, ratelimit.New(1, 0), nil)

	_, err := c.Polarity(context.Background(), "a")
	require.NoError(t, err)
	_, err = c.Polarity(context.Background(), "b")
	assert.ErrorIs(t, err, ratelimit.ErrBudgetExhausted)
	assert.Equal(t, 1, calls)

	c.ResetBudget()
	_, err = c.Polarity(context.Background(), "c")
	assert.NoError(t, err)
}

func TestPolarity_EachAttemptHasDeadline(t *testing.T) {
	var calls atomic.Int32
	c := newClient(func(ctx context.Context, _ string) (string, error) {
		calls.Add(1)
		_, ok := ctx.Deadline()
		assert.True(t, ok, "attempt context has a deadline")
		<-ctx.Done()
		return "", ctx.Err()
	}, nil, nil)
	c.timeout = 20 * time.Millisecond
	c.retry.Delay = 0

	done := make(chan error, 1)
	go func() {
		_, err := c.Polarity(context.Background(), "Beijing never answers")
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "timed out")
		assert.Equal(t, int32(2), calls.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("Polarity did not return after its per-attempt timeout")
	}
}

func TestStats(t *testing.T) {
	c := newClient(func(context.Context, string) (string, error) { return "0", nil }, ratelimit.New(3, 0), nil)
	_, err := c.Polarity(context.Background(), "a")
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 1, stats["cycle_used"])
	assert.Equal(t, 3, stats["cycle_limit"])
	assert.Equal(t, defaultTimeout.Seconds(), stats["timeout_seconds"])
}
