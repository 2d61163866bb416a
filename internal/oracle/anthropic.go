package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/memoryctl/memoryctl/internal/logging"
)

var log = logging.GetLogger("oracle")

const defaultModel = "claude-3-5-haiku-20241022"

// ErrAPIKeyRequired is returned when no Anthropic API key is available.
var ErrAPIKeyRequired = errors.New("oracle: ANTHROPIC_API_KEY required")

// AnthropicOracle judges contradictions, gray-zone duplicates, and
// candidate extraction via the Anthropic API. Retry/backoff shape
// mirrors the teacher pack's haiku.go client: exponential backoff,
// retry only on timeouts and 429/5xx.
type AnthropicOracle struct {
	client anthropic.Client
	model  anthropic.Model
	cfg    Config
}

// NewAnthropicOracle builds an oracle from apiKey (env var takes
// precedence) and cfg. Returns ErrAPIKeyRequired if no key is set.
func NewAnthropicOracle(apiKey string, cfg Config) (*AnthropicOracle, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}
	if cfg.MaxRetries <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig().InitialBackoff
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicOracle{client: client, model: defaultModel, cfg: cfg}, nil
}

func (o *AnthropicOracle) CheckContradiction(ctx context.Context, existing, candidate string) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(contradictionPromptTemplate, existing, candidate)
	text, err := o.callWithRetry(ctx, prompt)
	if err != nil {
		log.Warn("contradiction oracle call failed, defaulting to no contradiction", "error", err)
		return VerdictUnknown, err
	}

	upper := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case strings.Contains(upper, "CONTRADICTS"):
		return VerdictContradicts, nil
	case strings.Contains(upper, "COMPATIBLE"):
		return VerdictCompatible, nil
	default:
		return VerdictUnknown, nil
	}
}

func (o *AnthropicOracle) CheckDuplicate(ctx context.Context, a, b string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(duplicatePromptTemplate, a, b)
	text, err := o.callWithRetry(ctx, prompt)
	if err != nil {
		log.Warn("duplicate oracle call failed, defaulting to not-duplicate", "error", err)
		return false, err
	}
	return strings.Contains(strings.ToUpper(strings.TrimSpace(text)), "YES"), nil
}

func (o *AnthropicOracle) Extract(ctx context.Context, text string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	prompt := fmt.Sprintf(extractPromptTemplate, text)
	resp, err := o.callWithRetry(ctx, prompt)
	if err != nil {
		log.Warn("extraction oracle call failed, returning no candidates", "error", err)
		return nil, err
	}

	var raw []struct {
		Content    string  `json:"content"`
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	jsonStart := strings.Index(resp, "[")
	jsonEnd := strings.LastIndex(resp, "]")
	if jsonStart < 0 || jsonEnd < jsonStart {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(resp[jsonStart:jsonEnd+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, r := range raw {
		candidates = append(candidates, Candidate{Content: r.Content, Category: r.Category, Confidence: r.Confidence})
	}
	return candidates, nil
}

func (o *AnthropicOracle) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.InitialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := o.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) == 0 {
				return "", fmt.Errorf("empty response from oracle")
			}
			content := message.Content[0]
			if content.Type != "text" {
				return "", fmt.Errorf("unexpected response format: %s", content.Type)
			}
			return content.Text, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable oracle error: %w", err)
		}
	}

	return "", fmt.Errorf("oracle call failed after %d attempts: %w", o.cfg.MaxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	return false
}

const contradictionPromptTemplate = `Does the new statement contradict the existing one? Reply with exactly one word: CONTRADICTS or COMPATIBLE.

Existing: %s

New: %s`

const duplicatePromptTemplate = `Do these two statements describe the same fact? Reply YES or NO.

A: %s

B: %s`

const extractPromptTemplate = `Extract distinct, durable facts worth remembering from this text. Reply with a JSON array of objects, each with "content", "category", and "confidence" (0-1) fields. Reply with only the JSON array, nothing else.

Text:
%s`
