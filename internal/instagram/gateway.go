package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sony/gobreaker"

	"github.com/socialora/outreach/internal/breaker"
)

// DefaultTimeout is the default timeout for gateway requests
const DefaultTimeout = 30 * time.Second

// Session headers understood by the gateway
const (
	HeaderAccount = "X-IG-Account"
	HeaderSession = "X-IG-Session"
)

// GatewayOptions configures the gateway client
type GatewayOptions struct {
	BaseURL string
	Timeout time.Duration
}

// GatewayClient talks JSON over HTTP to the Instagram gateway service
type GatewayClient struct {
	baseURL string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
}

var _ Client = (*GatewayClient)(nil)

// gatewayError is the error body returned by the gateway
type gatewayError struct {
	Error string `json:"error"`
}

// NewGatewayClient creates a gateway client guarded by a circuit breaker
func NewGatewayClient(opts GatewayOptions) (*GatewayClient, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("instagram gateway URL cannot be empty")
	}
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid instagram gateway URL: %w", err)
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &GatewayClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		cb: breaker.New("instagram-gateway", breaker.Settings{
			// a missing user or post says nothing about the gateway health
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *GatewayClient) createAgent(ctx context.Context, s Session, method, endpoint string, body interface{}) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}

	agent.Set("Content-Type", "application/json")
	agent.Set("Accept", "application/json")
	agent.Set(HeaderAccount, s.Username)
	agent.Set(HeaderSession, s.Cookie)

	if body != nil {
		agent.JSON(body)
	}
	return agent, nil
}

// executeRequest runs the request through the breaker and decodes the response into v
func (c *GatewayClient) executeRequest(ctx context.Context, s Session, method, endpoint string, body, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.cb.Execute(func() (interface{}, error) {
		agent, err := c.createAgent(ctx, s, method, endpoint, body)
		if err != nil {
			return nil, err
		}
		return nil, c.doRequest(agent, v)
	})
	return err
}

// doRequest sends the HTTP request and processes the response
func (c *GatewayClient) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		msg := "unknown error"
		var errResp gatewayError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		switch statusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrSessionInvalid, msg)
		}
		return &fiber.Error{Code: statusCode, Message: msg}
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

func withLimit(endpoint string, limit int) string {
	if limit <= 0 {
		return endpoint
	}
	return endpoint + "?limit=" + strconv.Itoa(limit)
}

// FetchRecentPosts implements Client
func (c *GatewayClient) FetchRecentPosts(ctx context.Context, s Session, account string, limit int) ([]Post, error) {
	var resp struct {
		Posts []Post `json:"posts"`
	}
	endpoint := withLimit("/users/"+url.PathEscape(account)+"/posts", limit)
	if err := c.executeRequest(ctx, s, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch posts of %s: %w", account, err)
	}
	return resp.Posts, nil
}

// FetchComments implements Client
func (c *GatewayClient) FetchComments(ctx context.Context, s Session, postID string, limit int) ([]Comment, error) {
	var resp struct {
		Comments []Comment `json:"comments"`
	}
	endpoint := withLimit("/posts/"+url.PathEscape(postID)+"/comments", limit)
	if err := c.executeRequest(ctx, s, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch comments of post %s: %w", postID, err)
	}
	return resp.Comments, nil
}

// FetchThreadMessages implements Client
func (c *GatewayClient) FetchThreadMessages(ctx context.Context, s Session, username string, limit int) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	endpoint := withLimit("/threads/"+url.PathEscape(username)+"/messages", limit)
	if err := c.executeRequest(ctx, s, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch thread with %s: %w", username, err)
	}
	return resp.Messages, nil
}

// FetchUserProfile implements Client
func (c *GatewayClient) FetchUserProfile(ctx context.Context, s Session, username string) (*Profile, error) {
	var profile Profile
	if err := c.executeRequest(ctx, s, http.MethodGet, "/users/"+url.PathEscape(username), nil, &profile); err != nil {
		return nil, fmt.Errorf("failed to fetch profile of %s: %w", username, err)
	}
	return &profile, nil
}

// SendDM implements Client
func (c *GatewayClient) SendDM(ctx context.Context, s Session, username, text string) (*SendResult, error) {
	req := map[string]string{"username": username, "text": text}
	var res SendResult
	if err := c.executeRequest(ctx, s, http.MethodPost, "/direct/send", req, &res); err != nil {
		return nil, fmt.Errorf("failed to send DM to %s: %w", username, err)
	}
	return &res, nil
}
