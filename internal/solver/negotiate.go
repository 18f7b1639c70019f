package solver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Negotiator turns a canonical request into a solver session.
type Negotiator interface {
	Negotiate(ctx context.Context, req *Request) (*Handle, error)
}

// HTTPNegotiator negotiates sessions with a single POST per call. It never
// retries; retrying a failed negotiation is the caller's decision.
type HTTPNegotiator struct {
	baseURL string
	rest    *resty.Client
	logger  *zap.Logger
}

// NewHTTPNegotiator creates a negotiator targeting baseURL
// (e.g. "http://127.0.0.1:8000").
func NewHTTPNegotiator(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPNegotiator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rest := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &HTTPNegotiator{baseURL: baseURL, rest: rest, logger: logger}
}

// SessionPath returns the negotiation path for a mode.
func SessionPath(mode Mode) string {
	if mode == ModeOptimization {
		return "/optimize/sessions"
	}
	return "/sessions"
}

// Negotiate posts req and returns the session handle.
func (n *HTTPNegotiator) Negotiate(ctx context.Context, req *Request) (*Handle, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode session request: %w", err)
	}

	path := SessionPath(req.Mode)
	resp, err := n.rest.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, &NegotiationError{Message: err.Error(), Err: err}
	}

	if !resp.IsSuccess() {
		msg := errorMessage(resp.StatusCode(), resp.Body())
		n.logger.Warn("session negotiation rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", msg))
		return nil, &NegotiationError{Status: resp.StatusCode(), Message: msg}
	}

	var h Handle
	if err := json.Unmarshal(resp.Body(), &h); err != nil {
		return nil, &ProtocolError{Message: "undecodable session response", Err: err}
	}
	if h.SessionID == "" {
		return nil, &ProtocolError{Message: "session response has no session_id"}
	}

	n.logger.Info("session negotiated",
		zap.String("path", path),
		zap.String("session_id", h.SessionID))
	return &h, nil
}

// errorMessage extracts a best-effort message from a failed response body:
// a JSON detail (string or list of {msg}), then a JSON message, then the raw
// text, then a generic fallback.
func errorMessage(status int, body []byte) string {
	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if msg := detailMessage(parsed.Detail); msg != "" {
			return msg
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if t := http.StatusText(status); t != "" {
		return fmt.Sprintf("failed to create session (HTTP %d %s)", status, t)
	}
	return fmt.Sprintf("failed to create session (HTTP %d)", status)
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		var parts []string
		for _, it := range items {
			if it.Msg != "" {
				parts = append(parts, it.Msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
