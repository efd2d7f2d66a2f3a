package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// HTTPRecorderConfig configures the HTTP telemetry sink client.
type HTTPRecorderConfig struct {
	BaseURL    string
	Path       string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
}

// HTTPRecorder posts telemetry events to an external sink. Send failures are
// logged and swallowed; the sink is advisory only.
type HTTPRecorder struct {
	baseURL string
	path    string
	client  *http.Client
	timeout time.Duration
	retries int
}

// NewHTTPRecorder constructs an HTTPRecorder.
func NewHTTPRecorder(cfg HTTPRecorderConfig) (*HTTPRecorder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("telemetry base url required")
	}
	path := cfg.Path
	if path == "" {
		path = "/telemetry/events"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	return &HTTPRecorder{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		path:    path,
		client:  client,
		timeout: timeout,
		retries: retries,
	}, nil
}

type telemetryEvent struct {
	Kind         string      `json:"kind"`
	AgentID      string      `json:"agentId"`
	ExecutionRef string      `json:"executionRef"`
	Input        interface{} `json:"input,omitempty"`
	DurationMS   int64       `json:"durationMs,omitempty"`
	ErrorCode    string      `json:"errorCode,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	TS           time.Time   `json:"ts"`
}

func (r *HTTPRecorder) RecordStart(ctx context.Context, agentID, executionRef string, input interface{}) {
	r.send(ctx, telemetryEvent{
		Kind:         "invocation_start",
		AgentID:      agentID,
		ExecutionRef: executionRef,
		Input:        input,
	})
}

func (r *HTTPRecorder) RecordSuccess(ctx context.Context, agentID, executionRef string, durationMS int64) {
	r.send(ctx, telemetryEvent{
		Kind:         "invocation_success",
		AgentID:      agentID,
		ExecutionRef: executionRef,
		DurationMS:   durationMS,
	})
}

func (r *HTTPRecorder) RecordFailure(ctx context.Context, agentID, executionRef, errorCode, errorMessage string) {
	r.send(ctx, telemetryEvent{
		Kind:         "invocation_failure",
		AgentID:      agentID,
		ExecutionRef: executionRef,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
	})
}

func (r *HTTPRecorder) send(ctx context.Context, ev telemetryEvent) {
	ev.TS = time.Now().UTC()
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[telemetry] marshal event: %v", err)
		return
	}

	attempts := r.retries + 1
	var lastErr error
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return
		}
		reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.baseURL+r.path, bytes.NewReader(body))
		if err != nil {
			cancel()
			log.Printf("[telemetry] build request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := r.client.Do(req)
		cancel()
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return
			}
			lastErr = fmt.Errorf("telemetry sink responded %s", resp.Status)
		} else {
			lastErr = err
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
		}
	}
	log.Printf("[telemetry] send %s failed: %v", ev.Kind, lastErr)
}
