package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/debateflow/types"
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// RequestTimeout is the client-level timeout applied when the call has
	// no tighter budget.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// RateRPS / RateBurst bound the outbound request rate per agent, so a
	// burst of parallel instances does not trip the provider's limiter.
	RateRPS   float64 `yaml:"rate_rps" json:"rate_rps"`
	RateBurst int     `yaml:"rate_burst" json:"rate_burst"`

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes int64 `yaml:"max_response_bytes" json:"max_response_bytes"`
}

// DefaultHTTPConfig returns defaults suitable for local gateways.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		RequestTimeout:   120 * time.Second,
		RateRPS:          2,
		RateBurst:        4,
		MaxResponseBytes: 4 << 20,
	}
}

// HTTPInvoker reaches agents over HTTP. The wire format is the minimal
// completion contract of the internal gateway; provider-specific protocols
// live behind that gateway, not here.
type HTTPInvoker struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger

	mu       sync.Mutex
	limiters map[types.AgentID]*rate.Limiter
}

type completionRequest struct {
	Model         string  `json:"model,omitempty"`
	Prompt        string  `json:"prompt"`
	Temperature   float64 `json:"temperature,omitempty"`
	Seed          int64   `json:"seed,omitempty"`
	DeepReasoning bool    `json:"deep_reasoning,omitempty"`
}

type completionResponse struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// NewHTTPInvoker creates an HTTP invoker.
func NewHTTPInvoker(cfg HTTPConfig, logger *zap.Logger) *HTTPInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultHTTPConfig().RequestTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultHTTPConfig().MaxResponseBytes
	}
	return &HTTPInvoker{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		logger:   logger.With(zap.String("component", "http_invoker")),
		limiters: make(map[types.AgentID]*rate.Limiter),
	}
}

// Name implements Invoker.Name.
func (h *HTTPInvoker) Name() string {
	return "http"
}

// Invoke implements Invoker.Invoke.
func (h *HTTPInvoker) Invoke(ctx context.Context, agent types.Agent, prompt string, opts InvokeOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := h.limiter(agent.ID).Wait(ctx); err != nil {
		return "", types.NewError(types.ErrTimeout, fmt.Sprintf("agent %s rate wait aborted", agent.ID)).
			WithAgent(string(agent.ID)).
			WithCause(err)
	}

	reqBody := completionRequest{
		Model:  agent.Model,
		Prompt: prompt,
	}
	if opts.Instance != nil {
		reqBody.Temperature = opts.Instance.Temperature
		reqBody.Seed = opts.Instance.Seed
	}
	reqBody.DeepReasoning = opts.DeepReasoning && agent.SupportsDeepReasoning

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrConfiguration, fmt.Sprintf("agent %s endpoint invalid", agent.ID)).
			WithAgent(string(agent.ID)).
			WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", types.NewError(types.ErrTimeout, fmt.Sprintf("agent %s request timed out", agent.ID)).
				WithAgent(string(agent.ID)).
				WithCause(err)
		}
		return "", types.NewError(types.ErrNetwork, fmt.Sprintf("agent %s unreachable", agent.ID)).
			WithAgent(string(agent.ID)).
			WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxResponseBytes))
	if err != nil {
		return "", types.NewError(types.ErrNetwork, fmt.Sprintf("agent %s response read failed", agent.ID)).
			WithAgent(string(agent.ID)).
			WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", h.statusError(agent, resp.StatusCode, body)
	}

	var decoded completionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		// a non-JSON 200 body is treated as plain text output
		return string(body), nil
	}
	if decoded.Error != "" {
		return "", types.NewError(types.ErrRetriable, fmt.Sprintf("agent %s: %s", agent.ID, decoded.Error)).
			WithAgent(string(agent.ID))
	}
	return decoded.Content, nil
}

// statusError maps HTTP status codes onto the error taxonomy.
func (h *HTTPInvoker) statusError(agent types.Agent, status int, body []byte) error {
	msg := fmt.Sprintf("agent %s returned status %d", agent.ID, status)
	if len(body) > 0 && len(body) <= 200 {
		msg = fmt.Sprintf("%s: %s", msg, bytes.TrimSpace(body))
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrAuthentication, msg).
			WithAgent(string(agent.ID)).
			WithHTTPStatus(status)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimit, msg).
			WithAgent(string(agent.ID)).
			WithHTTPStatus(status)
	case status >= 500:
		return types.NewError(types.ErrNetwork, msg).
			WithAgent(string(agent.ID)).
			WithHTTPStatus(status)
	default:
		return types.NewError(types.ErrRetriable, msg).
			WithAgent(string(agent.ID)).
			WithHTTPStatus(status)
	}
}

// limiter returns the per-agent rate limiter, creating it on first use.
func (h *HTTPInvoker) limiter(id types.AgentID) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	if l, ok := h.limiters[id]; ok {
		return l
	}
	rps := h.cfg.RateRPS
	if rps <= 0 {
		rps = DefaultHTTPConfig().RateRPS
	}
	burst := h.cfg.RateBurst
	if burst <= 0 {
		burst = DefaultHTTPConfig().RateBurst
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	h.limiters[id] = l
	return l
}
