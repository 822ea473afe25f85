package narrative

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrEmptyExplanation indicates the service answered without any text
var ErrEmptyExplanation = errors.New("narrative service returned no explanation")

// Request carries the scan signals the explanation is written from
type Request struct {
	URL        string   `json:"url"`
	Score      int      `json:"score"`
	Level      string   `json:"level"`
	Indicators []string `json:"indicators"`
	Stream     bool     `json:"stream"`
}

// Explanation is the generated text plus a coarse reading of its tone
type Explanation struct {
	Text       string `json:"explanation"`
	Tone       Tone   `json:"tone"`
	ResponseID string `json:"response_id,omitempty"`
}

// Client calls an explanation service that answers either with a JSON
// document or with a server-sent event stream of text deltas
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New creates a narrative client
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "riskscan/1.0",
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Explain asks the service to describe a scan result in plain language
func (c *Client) Explain(ctx context.Context, r Request) (*Explanation, error) {
	if r.Indicators == nil {
		r.Indicators = []string{}
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/explain", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call narrative service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("narrative service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var exp *Explanation
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/event-stream" {
		exp, err = parseStream(resp.Body)
	} else {
		exp, err = parseDocument(resp.Body)
	}
	if err != nil {
		return nil, err
	}

	exp.Text = strings.TrimSpace(exp.Text)
	if exp.Text == "" {
		return nil, ErrEmptyExplanation
	}
	exp.Tone = ClassifyTone(exp.Text)
	return exp, nil
}

func parseDocument(body io.Reader) (*Explanation, error) {
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read narrative response: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse narrative response")
	}
	return &Explanation{
		Text:       gjson.GetBytes(data, "explanation").String(),
		ResponseID: gjson.GetBytes(data, "id").String(),
	}, nil
}

// parseStream accumulates "text.delta" events until the stream ends
func parseStream(body io.Reader) (*Explanation, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		event     string
		dataLines []string
		text      strings.Builder
		exp       Explanation
	)

	dispatch := func() {
		if event == "" || len(dataLines) == 0 {
			return
		}
		data := strings.Join(dataLines, "\n")
		switch event {
		case "response.created":
			exp.ResponseID = gjson.Get(data, "response.id").String()
		case "text.delta":
			text.WriteString(gjson.Get(data, "delta").String())
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			dispatch()
			event = ""
			dataLines = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading narrative stream: %w", err)
	}
	// stream may end without a trailing blank line
	dispatch()

	exp.Text = text.String()
	return &exp, nil
}
