package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/philhumber/wineApp-sub000/internal/resilience"
)

const (
	perplexityBaseURL = "https://api.perplexity.ai"
	perplexityModel   = "sonar-pro"
)

// PerplexityProvider adapts the Perplexity chat completions API, which
// grounds answers in live web search. Used by the enrichment pipeline.
type PerplexityProvider struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// PerplexityOption configures the adapter.
type PerplexityOption func(*PerplexityProvider)

// WithPerplexityBaseURL overrides the default API base URL.
func WithPerplexityBaseURL(url string) PerplexityOption {
	return func(p *PerplexityProvider) { p.baseURL = strings.TrimSuffix(url, "/") }
}

// WithPerplexityModel overrides the default model.
func WithPerplexityModel(model string) PerplexityOption {
	return func(p *PerplexityProvider) { p.model = model }
}

// WithPerplexityHTTPClient overrides the default http.Client.
func WithPerplexityHTTPClient(hc *http.Client) PerplexityOption {
	return func(p *PerplexityProvider) { p.http = hc }
}

// NewPerplexityProvider creates the Perplexity adapter.
func NewPerplexityProvider(apiKey string, opts ...PerplexityOption) *PerplexityProvider {
	p := &PerplexityProvider{
		apiKey:  apiKey,
		baseURL: perplexityBaseURL,
		model:   perplexityModel,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

type pplxMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type pplxRequest struct {
	Model       string        `json:"model"`
	Messages    []pplxMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
}

type pplxUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type pplxResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message pplxMessage `json:"message"`
		Delta   pplxMessage `json:"delta"`
	} `json:"choices"`
	Usage pplxUsage `json:"usage"`
}

func (p *PerplexityProvider) Call(ctx context.Context, req Request) (*Result, error) {
	resp, err := p.send(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read response")
	}

	var parsed pplxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "perplexity: unmarshal response")
	}
	if len(parsed.Choices) == 0 {
		return nil, eris.New("perplexity: empty choices")
	}

	return &Result{
		Text:  parsed.Choices[0].Message.Content,
		Model: parsed.Model,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}

func (p *PerplexityProvider) CallStreaming(ctx context.Context, req Request, onDelta func(string)) (*Result, error) {
	resp, err := p.send(ctx, req, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var text strings.Builder
	var usage pplxUsage
	model := p.model

	// SSE frames arrive as "data: {...}" lines; bufio handles chunk
	// boundaries, the terminator is "data: [DONE]".
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk pplxResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return nil, eris.Wrap(err, "perplexity: unmarshal stream chunk")
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = chunk.Usage
		}
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				text.WriteString(delta)
				if onDelta != nil {
					onDelta(delta)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "perplexity: read stream")
	}

	return &Result{
		Text:  text.String(),
		Model: model,
		Usage: Usage{
			InputTokens:  usage.PromptTokens,
			OutputTokens: usage.CompletionTokens,
		},
	}, nil
}

func (p *PerplexityProvider) send(ctx context.Context, req Request, streaming bool) (*http.Response, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]pplxMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, pplxMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, pplxMessage{Role: "user", Content: req.Prompt})

	payload := pplxRequest{
		Model:       model,
		Messages:    messages,
		Stream:      streaming,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload.MaxTokens = &req.MaxTokens
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: send request")
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return resp, nil
}
