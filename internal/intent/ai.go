package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker"

	"github.com/socialora/outreach/internal/breaker"
)

// DefaultAITimeout bounds a single scoring call
const DefaultAITimeout = 20 * time.Second

// ErrMalformedReply is returned when the model reply does not match the expected shape
var ErrMalformedReply = errors.New("malformed intent reply")

const systemPrompt = `You score Instagram comments on real estate posts for buyer intent.
Reply with a JSON object only: {"score": <integer 0-100>, "isBuyer": <boolean>, "reason": <short string>}.
A buyer asks about price, availability, location, financing or wants to be contacted.`

var replySchema = jsonschema.MustCompileString("intent-reply.json", `{
	"type": "object",
	"required": ["score", "isBuyer"],
	"properties": {
		"score": {"type": "integer", "minimum": 0, "maximum": 100},
		"isBuyer": {"type": "boolean"},
		"reason": {"type": "string"}
	}
}`)

// AIConfig configures the chat-completions collaborator
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// AIClassifier asks an OpenAI compatible chat-completions endpoint for a score
type AIClassifier struct {
	cfg AIConfig
	cb  *gobreaker.CircuitBreaker
}

// NewAIClassifier creates an AI classifier guarded by a circuit breaker
func NewAIClassifier(cfg AIConfig) *AIClassifier {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultAITimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AIClassifier{
		cfg: cfg,
		cb:  breaker.New("intent-ai", breaker.Settings{MinRequests: 3}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify implements Classifier
func (a *AIClassifier) Classify(ctx context.Context, comment, caption string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	out, err := a.cb.Execute(func() (interface{}, error) {
		return a.complete(ctx, comment, caption)
	})
	if err != nil {
		return Result{}, err
	}
	return out.(Result), nil
}

func (a *AIClassifier) complete(ctx context.Context, comment, caption string) (Result, error) {
	user := "Comment: " + comment
	if caption != "" {
		user = "Post caption: " + caption + "\n" + user
	}
	req := chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	agent := fiber.Post(a.cfg.BaseURL + "/chat/completions")
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(a.cfg.Timeout)
	}
	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	agent.Set("Authorization", "Bearer "+a.cfg.APIKey)
	agent.Set("X-Request-ID", uuid.NewString())
	agent.JSON(req)

	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return Result{}, fmt.Errorf("error sending intent request: %w", errs[0])
	}
	if statusCode < 200 || statusCode >= 300 {
		return Result{}, &fiber.Error{Code: statusCode, Message: string(body)}
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("error decoding intent response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("%w: no choices", ErrMalformedReply)
	}
	return parseReply(resp.Choices[0].Message.Content)
}

// parseReply validates the model's JSON content, tolerating a fenced code block
func parseReply(content string) (Result, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if err := replySchema.Validate(raw); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	var res Result
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	res.Source = SourceAI
	return res, nil
}
