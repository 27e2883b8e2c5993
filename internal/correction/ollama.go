package correction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

var ErrEmptyResponse = errors.New("corrector returned an empty response")

// Config points the client at an Ollama-compatible generate endpoint.
type Config struct {
	URL      string
	Model    string
	Timeout  time.Duration
	RetryMax int
}

// Client asks a local language model to apply a spoken correction to a
// field value.
type Client struct {
	http *retryablehttp.Client
	cfg  Config
	log  logrus.FieldLogger
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func New(cfg Config, logger logrus.FieldLogger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemma3:1b"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	log := logger.WithField("component", "corrector")
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = cfg.Timeout
	client.Logger = leveledLogger{log: log}

	return &Client{http: client, cfg: cfg, log: log}
}

// Prompt builds the instruction sent to the model.
func Prompt(input string, action string) string {
	return fmt.Sprintf(
		"You are a string corrector. For the input string %q, perform the action: %q. "+
			"Return only the corrected string. "+
			"Example: input \"Dipanshu\", action \"Remove i and replace it with ee\" returns \"Deepanshu\".",
		input, action,
	)
}

// Correct returns input rewritten according to action.
func (c *Client) Correct(ctx context.Context, input string, action string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: Prompt(input, action),
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return "", fmt.Errorf("build correction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("correction request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read correction response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("correction request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded generateResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("decode correction response: %w", err)
	}
	corrected := strings.TrimSpace(decoded.Response)
	if corrected == "" {
		return "", ErrEmptyResponse
	}

	c.log.WithFields(logrus.Fields{"input": input, "action": action}).Infof("corrected to %q", corrected)
	return corrected, nil
}

// leveledLogger routes retryablehttp logs into logrus.
type leveledLogger struct {
	log logrus.FieldLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Error(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Warn(msg)
}

func (l leveledLogger) with(keysAndValues []interface{}) logrus.FieldLogger {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return l.log.WithFields(fields)
}
