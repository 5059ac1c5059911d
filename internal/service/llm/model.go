package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-kratos/blades"
	"github.com/go-kratos/blades/contrib/openai"
	oai "github.com/openai/openai-go/v3"
	"github.com/sony/gobreaker"

	"AlphaCrew/internal/domain/models"
	domsvc "AlphaCrew/internal/domain/service"
	applogger "AlphaCrew/pkg/logger"
)

type Config struct {
	Model           string
	APIKey          string
	BaseURL         string
	MaxOutputTokens int
	Temperature     float64
	Timeout         time.Duration
	// breaker
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type generateFunc func(ctx context.Context, instruction, input string) (string, error)

// Model adapts a blades model provider to the LanguageModel seam. Calls go
// through a circuit breaker so a failing provider is not hammered by every
// request.
type Model struct {
	generate generateFunc
	cb       *gobreaker.CircuitBreaker
	timeout  time.Duration
	l        *applogger.Logger
}

func NewModel(cfg Config) (*Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	opts := openai.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL}
	if cfg.MaxOutputTokens > 0 {
		opts.MaxOutputTokens = int64(cfg.MaxOutputTokens)
	}
	if cfg.Temperature > 0 {
		opts.Temperature = cfg.Temperature
	}
	provider := openai.NewModel(cfg.Model, opts)

	gen := func(ctx context.Context, instruction, input string) (string, error) {
		resp, err := provider.Generate(ctx, &blades.ModelRequest{
			Instruction: blades.SystemMessage(instruction),
			Messages:    []*blades.Message{blades.UserMessage(input)},
		})
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Message == nil {
			return "", fmt.Errorf("model returned empty response")
		}
		return strings.TrimSpace(resp.Message.Text()), nil
	}
	return newModel(cfg, gen), nil
}

func newModel(cfg Config, gen generateFunc) *Model {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	m := &Model{generate: gen, timeout: cfg.Timeout}
	threshold := cfg.FailureThreshold
	m.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "llm:" + cfg.Model,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// rate limiting is the provider pushing back, not the provider failing
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrModelRateLimited)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if m.l != nil {
				m.l.Warn("llm circuit state changed",
					applogger.String("breaker", name),
					applogger.String("from", from.String()),
					applogger.String("to", to.String()),
				)
			}
		},
	})
	return m
}

func (m *Model) SetLogger(l *applogger.Logger) { m.l = l }

// Invoke renders {{name}} placeholders of prompt from inputs and sends it as
// the system instruction. Inputs not referenced by the prompt are appended to
// the user message.
func (m *Model) Invoke(ctx context.Context, prompt string, inputs map[string]string) (string, error) {
	instruction, rest := Render(prompt, inputs)
	input := "Respond to the instruction."
	if len(rest) > 0 {
		input = strings.Join(rest, "\n")
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := m.cb.Execute(func() (interface{}, error) {
		text, err := m.generate(ctx, instruction, input)
		if err != nil {
			return nil, classify(err)
		}
		return text, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
		}
		if m.l != nil {
			m.l.Warn("llm invocation failed", applogger.Duration("elapsed", time.Since(start)), applogger.Error(err))
		}
		return "", err
	}
	return out.(string), nil
}

// classify maps provider errors onto the seam errors. The openai provider
// returns *oai.Error for any non-2xx response.
func classify(err error) error {
	if errors.Is(err, models.ErrModelRateLimited) || errors.Is(err, models.ErrModelUnavailable) {
		return err
	}
	var apiErr *oai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", models.ErrModelRateLimited, err)
	}
	return fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
}

// Render substitutes {{key}} placeholders and returns "key: value" lines for
// inputs the template did not use, in key order.
func Render(prompt string, inputs map[string]string) (string, []string) {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rest []string
	for _, k := range keys {
		ph := "{{" + k + "}}"
		if strings.Contains(prompt, ph) {
			prompt = strings.ReplaceAll(prompt, ph, inputs[k])
			continue
		}
		rest = append(rest, k+": "+inputs[k])
	}
	return prompt, rest
}

var _ domsvc.LanguageModel = (*Model)(nil)
