package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaCrew/internal/domain/models"
)

func TestRender(t *testing.T) {
	out, rest := Render("Assess {{security_id}} as of {{as_of}}.", map[string]string{
		"security_id": "ACME",
		"as_of":       "2024-03-01",
		"sector":      "tech",
	})
	assert.Equal(t, "Assess ACME as of 2024-03-01.", out)
	assert.Equal(t, []string{"sector: tech"}, rest)
}

func TestInvokePassesRenderedPrompt(t *testing.T) {
	var gotInstruction, gotInput string
	m := newModel(Config{Model: "test"}, func(_ context.Context, instruction, input string) (string, error) {
		gotInstruction, gotInput = instruction, input
		return `{"ok":true}`, nil
	})
	out, err := m.Invoke(context.Background(), "Rate {{security_id}}", map[string]string{"security_id": "ACME", "note": "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "Rate ACME", gotInstruction)
	assert.Equal(t, "note: x", gotInput)
}

func apiError(status int) error {
	return fmt.Errorf("generate: %w", &oai.Error{
		StatusCode: status,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil),
		Response:   &http.Response{StatusCode: status},
	})
}

func TestInvokeClassifiesErrors(t *testing.T) {
	rl := newModel(Config{Model: "rl"}, func(context.Context, string, string) (string, error) {
		return "", apiError(http.StatusTooManyRequests)
	})
	_, err := rl.Invoke(context.Background(), "p", nil)
	assert.ErrorIs(t, err, models.ErrModelRateLimited)

	overloaded := newModel(Config{Model: "5xx"}, func(context.Context, string, string) (string, error) {
		return "", apiError(http.StatusServiceUnavailable)
	})
	_, err = overloaded.Invoke(context.Background(), "p", nil)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)

	// only the typed status counts; message text is not parsed
	text := newModel(Config{Model: "text"}, func(context.Context, string, string) (string, error) {
		return "", errors.New("upstream said 429")
	})
	_, err = text.Invoke(context.Background(), "p", nil)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)

	down := newModel(Config{Model: "down"}, func(context.Context, string, string) (string, error) {
		return "", errors.New("dial tcp: connection refused")
	})
	_, err = down.Invoke(context.Background(), "p", nil)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	m := newModel(Config{Model: "flaky", FailureThreshold: 2, OpenTimeout: time.Minute}, func(context.Context, string, string) (string, error) {
		calls++
		return "", errors.New("500 internal error")
	})
	for i := 0; i < 2; i++ {
		_, err := m.Invoke(context.Background(), "p", nil)
		require.Error(t, err)
	}
	_, err := m.Invoke(context.Background(), "p", nil)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
	assert.Equal(t, 2, calls)
}

func TestRateLimitDoesNotTripBreaker(t *testing.T) {
	calls := 0
	m := newModel(Config{Model: "busy", FailureThreshold: 1, OpenTimeout: time.Minute}, func(context.Context, string, string) (string, error) {
		calls++
		return "", apiError(http.StatusTooManyRequests)
	})
	for i := 0; i < 3; i++ {
		_, err := m.Invoke(context.Background(), "p", nil)
		assert.ErrorIs(t, err, models.ErrModelRateLimited)
	}
	assert.Equal(t, 3, calls)
}

func TestNewModelRequiresKey(t *testing.T) {
	_, err := NewModel(Config{Model: "gpt-4o-mini"})
	assert.Error(t, err)
}
