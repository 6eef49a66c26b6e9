package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackLLMClient(t *testing.T) {
	ok := &scriptedLLM{replies: []string{"from fallback"}}

	t.Run("primary succeeds", func(t *testing.T) {
		primary := &scriptedLLM{replies: []string{"from primary"}}
		secondary := &scriptedLLM{}
		resp, err := NewFallbackLLMClient(primary, secondary, nil).Complete(context.Background(), LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "from primary", resp.Text)
		assert.Empty(t, secondary.requests)
	})

	t.Run("secondary after primary error", func(t *testing.T) {
		primary := &scriptedLLM{err: errors.New("503")}
		resp, err := NewFallbackLLMClient(primary, ok, nil).Complete(context.Background(), LLMRequest{})
		require.NoError(t, err)
		assert.Equal(t, "from fallback", resp.Text)
	})

	t.Run("no secondary", func(t *testing.T) {
		primary := &scriptedLLM{err: errors.New("503")}
		_, err := NewFallbackLLMClient(primary, nil, nil).Complete(context.Background(), LLMRequest{})
		assert.EqualError(t, err, "503")
	})

	t.Run("both fail", func(t *testing.T) {
		primary := &scriptedLLM{err: errors.New("503")}
		secondary := &scriptedLLM{err: errors.New("throttled")}
		_, err := NewFallbackLLMClient(primary, secondary, nil).Complete(context.Background(), LLMRequest{})
		assert.EqualError(t, err, "throttled")
	})

	t.Run("expired context skips secondary", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		primary := &scriptedLLM{err: context.Canceled}
		secondary := &scriptedLLM{replies: []string{"late"}}
		_, err := NewFallbackLLMClient(primary, secondary, nil).Complete(ctx, LLMRequest{})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, secondary.requests)
	})
}
