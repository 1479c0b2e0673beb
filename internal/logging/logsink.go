package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logPayload struct {
	Source  string `json:"source"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// logSender ships warn-and-above log entries to the central log collector.
// Entries are dropped rather than queued when the buffer is full; the sink
// must never slow the engine down.
type logSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
	ch      chan logPayload
}

func newLogSender(baseURL, apiKey string) *logSender {
	return &logSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 3 * time.Second},
		ch:      make(chan logPayload, 200),
	}
}

func (s *logSender) start() {
	go func() {
		for payload := range s.ch {
			body, _ := json.Marshal(payload)
			req, err := http.NewRequest(http.MethodPost, s.baseURL+"/v1/logs", bytes.NewReader(body))
			if err != nil {
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			if s.apiKey != "" {
				req.Header.Set("Authorization", "Bearer "+s.apiKey)
			}
			_, _ = s.client.Do(req)
		}
	}()
}

func (s *logSender) offer(p logPayload) {
	select {
	case s.ch <- p:
	default:
	}
}

// attachLogSink forwards warn-and-above entries to LOG_SERVICE_BASE_URL
// when set; otherwise it returns the logger unchanged.
func attachLogSink(logger *zap.Logger) *zap.Logger {
	baseURL := os.Getenv("LOG_SERVICE_BASE_URL")
	if baseURL == "" {
		return logger
	}
	sender := newLogSender(baseURL, os.Getenv("LOG_SERVICE_API_KEY"))
	sender.start()

	return logger.WithOptions(zap.Hooks(func(entry zapcore.Entry) error {
		if entry.Level < zapcore.WarnLevel {
			return nil
		}
		sender.offer(logPayload{
			Source:  "clinical-orchestrator",
			Level:   entry.Level.String(),
			Message: entry.Message,
		})
		return nil
	}))
}
