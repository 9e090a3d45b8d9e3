package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"missedcall_backend/platform/config"
	"missedcall_backend/platform/logger"

	"google.golang.org/genai"
)

// Adapter converts free-text owner input into a structured Result for the
// current onboarding state. Satisfied by *Client; faked in tests.
type Adapter interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Client calls the Gemini API in JSON mode at temperature zero so the
// contract stays deterministic and machine-parseable.
type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
	tracker *FailureTracker
	log     *logger.Logger
}

const systemInstruction = `You classify one SMS message from a business owner who is completing
guided onboarding. You are given the current onboarding state, the fields
collected so far, and the owner's message. Respond with JSON only, no
markdown, matching exactly:
{"action":"ACCEPT|REJECT|COMPLETE|ERROR","reply":"...","extracted":{"key":"value"},"nextState":"..."}
ACCEPT means the message satisfies the current state; include the fields it
provides and the next state. REJECT means it does not; include a short
re-ask reply. COMPLETE means this message finishes onboarding. Use ERROR
only if you cannot classify at all.`

// NewClient creates the extraction client. Returns nil when no API key is
// configured; callers must treat a nil adapter as permanently erroring.
func NewClient(ctx context.Context, cfg config.ExtractionConfig, tracker *FailureTracker, log *logger.Logger) (*Client, error) {
	if !cfg.IsExtractionEnabled() {
		return nil, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GetGeminiAPIKey(),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	timeout := cfg.GetExtractionTimeout()
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &Client{
		genai:   gc,
		model:   cfg.GetExtractionModel(),
		timeout: timeout,
		tracker: tracker,
		log:     log,
	}, nil
}

// Generate runs one extraction call. Any transport or schema failure is
// recorded with the tracker and returned as an error; the state machine
// maps errors to a REJECT-style retry reply.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if c == nil {
		return ErrorResult(), fmt.Errorf("extraction adapter not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(buildPrompt(req)), &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
	})
	if err != nil {
		c.tracker.RecordFailure(ctx, err)
		return ErrorResult(), fmt.Errorf("extraction call failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	result, err := ParseResult([]byte(text))
	if err != nil {
		c.tracker.RecordFailure(ctx, err)
		c.log.Warn("malformed extraction response", "error", err)
		return ErrorResult(), err
	}

	c.tracker.RecordSuccess()
	return result, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Current state: " + req.State + "\n")

	if len(req.CollectedFields) > 0 {
		keys := make([]string, 0, len(req.CollectedFields))
		for k := range req.CollectedFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fields := make(map[string]string, len(keys))
		for _, k := range keys {
			fields[k] = req.CollectedFields[k]
		}
		encoded, _ := json.Marshal(fields)
		sb.WriteString("Collected fields: " + string(encoded) + "\n")
	}

	sb.WriteString("Owner message: " + req.UserInput + "\n")
	return sb.String()
}
