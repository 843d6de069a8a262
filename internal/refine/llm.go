package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider names
const (
	ProviderLLM    = "llm"
	ProviderLocal  = "local"
	ProviderScript = "script"

	DefaultLLMBaseURL = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

const (
	splitInstructions = `You group source code chunks. Divide the cluster into 2 to 4 cohesive sub-clusters.
Reply with JSON: {"clusters": [{"title": string, "chunks": [chunk ids]}]}. Use only chunk ids from the input.`

	compareInstructions = `You review two groups of code clusters. Find chunks that belong in a cluster of the other group.
Reply with JSON: {"moves": [{"chunk": chunk id, "src": current cluster id, "dst": target cluster id}]}. Reply {"moves": []} when nothing should move.`

	hierarchyInstructions = `You organise code clusters into categories. Every unparented cluster must be adopted by a parent.
Create parents with short local ids, or reuse an existing parent id.
Reply with JSON: {"creates": [{"id": string, "title": string}], "adopts": [{"child": cluster id, "parent": parent id}]}.`
)

// LLMConfig configures the chat completions client
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMRefiner calls an OpenAI-compatible chat completions API
type LLMRefiner struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewLLMRefiner creates a refiner backed by a chat completions endpoint
func NewLLMRefiner(cfg LLMConfig) (*LLMRefiner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required for the llm provider", ErrUnknownProvider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	return &LLMRefiner{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Split asks the model to divide a cluster
func (l *LLMRefiner) Split(ctx context.Context, req SplitRequest) (*SplitProposal, error) {
	if len(req.Cluster.Chunks) == 0 {
		return nil, ErrEmptyRequest
	}
	var proposal SplitProposal
	if err := l.complete(ctx, splitInstructions, req, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Compare asks the model for cross-group moves
func (l *LLMRefiner) Compare(ctx context.Context, req CompareRequest) (*CompareProposal, error) {
	if len(req.Left) == 0 || len(req.Right) == 0 {
		return &CompareProposal{}, nil
	}
	var proposal CompareProposal
	if err := l.complete(ctx, compareInstructions, req, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ProposeHierarchy asks the model for parent clusters
func (l *LLMRefiner) ProposeHierarchy(ctx context.Context, req HierarchyRequest) (*HierarchyProposal, error) {
	if len(req.Unparented) == 0 {
		return &HierarchyProposal{}, nil
	}
	var proposal HierarchyProposal
	if err := l.complete(ctx, hierarchyInstructions, req, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// Provider returns the provider name
func (l *LLMRefiner) Provider() string {
	return ProviderLLM
}

// complete sends one chat request and decodes the JSON reply into out
func (l *LLMRefiner) complete(ctx context.Context, instructions string, payload, out any) error {
	input, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	reqBody := map[string]interface{}{
		"model": l.model,
		"messages": []map[string]string{
			{"role": "system", "content": instructions},
			{"role": "user", "content": string(input)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return fmt.Errorf("%w: no choices returned", ErrInvalidResponse)
	}

	content := stripCodeFence(apiResp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// stripCodeFence removes a surrounding ```json fence some models add
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

var _ Refiner = (*LLMRefiner)(nil)
