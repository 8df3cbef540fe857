package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/arclane/assistants-executor/domain/assistants"
	"github.com/arclane/assistants-executor/pkg/logger"
)

// ActionResult is the outcome of one outbound HTTP call (spec §4.5).
type ActionResult struct {
	StatusCode int
	Body       string
}

// ActionExecutor performs outbound HTTP requests derived from an
// assistant's Action tool operations. It uses a plain *http.Client
// rather than a typed SDK because the request shape (domain+path+method+
// arbitrary params) is generated per-call from a stored descriptor.
type ActionExecutor struct {
	http *http.Client
	log  *slog.Logger
}

func NewActionExecutor(log *slog.Logger) *ActionExecutor {
	return &ActionExecutor{http: &http.Client{}, log: log.With(logger.Scope("runs.action_executor"))}
}

// Execute builds and sends the HTTP request for tool against params
// (decoded from the Function-Call Generator's arguments JSON). GET
// requests receive params as a query string; other methods receive
// params as a JSON body.
func (a *ActionExecutor) Execute(ctx context.Context, tool *assistants.ActionTool, argumentsJSON string) (*ActionResult, error) {
	params := map[string]any{}
	if argumentsJSON != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &params); err != nil {
			return nil, fmt.Errorf("action arguments: %w", err)
		}
	}

	method := strings.ToUpper(tool.Method)
	if method == "" {
		method = http.MethodGet
	}

	reqURL := tool.Domain + tool.Path
	var body io.Reader

	if method == http.MethodGet {
		u, err := url.Parse(reqURL)
		if err != nil {
			return nil, fmt.Errorf("action url: %w", err)
		}
		q := u.Query()
		for k, v := range params {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	} else {
		payload, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("action body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("build action request: %w", err)
	}

	contentType := tool.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	for k, v := range tool.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("action request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read action response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ActionResult{StatusCode: resp.StatusCode, Body: string(respBody)},
			fmt.Errorf("action %s returned status %d", tool.OperationID, resp.StatusCode)
	}

	return &ActionResult{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}
