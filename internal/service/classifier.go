package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/vinialveslopesanjos/sentimenta/internal/prompts"
)

// ClassifierInput is one comment submitted for classification.
type ClassifierInput struct {
	ID   string
	Text string
}

// ClassifierResult is the structured result for one comment. Numeric fields
// are pointers because the model may omit them; a nil or zero Confidence
// marks the result as unusable.
type ClassifierResult struct {
	CommentID  string
	Score      *float64
	Polarity   *float64
	Intensity  *float64
	Emotions   []string
	Topics     []string
	Sarcasm    bool
	Summary    string
	Confidence *float64
	TokensIn   int
	TokensOut  int
	CostUSD    float64
	Raw        string
}

// Classifier is the sentiment classification dependency of the analysis
// batcher. Implementations must return one result per supplied input id
// (synthesizing zero-confidence results for ids the model dropped) or fail
// the whole batch with an error.
type Classifier interface {
	Model() string
	Classify(ctx context.Context, batch []ClassifierInput, promptVersion string) ([]ClassifierResult, error)
}

// GeminiClassifierConfig holds configuration for the Gemini classifier client.
type GeminiClassifierConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// GeminiClassifier calls the Gemini generateContent endpoint to classify
// comment batches, retrying transient failures before surfacing an error.
type GeminiClassifier struct {
	client     *resty.Client
	model      string
	apiKey     string
	baseURL    string
	maxRetries int
	retryDelay time.Duration

	// Gemini 2.0 Flash pricing, per 1k tokens
	costPer1kInput  float64
	costPer1kOutput float64
}

// NewGeminiClassifier creates a new Gemini classifier client.
// Parameters:
//   - cfg: classifier configuration including model, API key and retry policy.
//
// Returns:
//   - *GeminiClassifier: initialized classifier client.
func NewGeminiClassifier(cfg *GeminiClassifierConfig) *GeminiClassifier {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = 2 * time.Second
	}

	return &GeminiClassifier{
		client:          client,
		model:           cfg.Model,
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		maxRetries:      maxRetries,
		retryDelay:      retryDelay,
		costPer1kInput:  0.000075,
		costPer1kOutput: 0.0003,
	}
}

// Model returns the model name being used.
func (c *GeminiClassifier) Model() string {
	return c.model
}

// Gemini generateContent API request/response structures
type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// classifierItems is the strict JSON shape the system prompt demands.
type classifierItems struct {
	Items []classifierItem `json:"items"`
}

type classifierItem struct {
	CommentID  string   `json:"comment_id"`
	Score      *float64 `json:"score_0_10"`
	Polarity   *float64 `json:"polarity"`
	Intensity  *float64 `json:"intensity"`
	Emotions   []string `json:"emotions"`
	Sarcasm    bool     `json:"sarcasm"`
	Topics     []string `json:"topics"`
	Summary    string   `json:"summary"`
	Confidence *float64 `json:"confidence"`
}

// Classify sends one batch of comments to the model and returns structured
// per-comment results. Retries up to MaxRetries with linear backoff; the
// error from the last attempt is returned when all attempts fail.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - batch: comments to classify.
//   - promptVersion: classifier prompt revision tag.
//
// Returns:
//   - []ClassifierResult: exactly one result per input id.
//   - error: non-nil if every attempt fails.
func (c *GeminiClassifier) Classify(ctx context.Context, batch []ClassifierInput, promptVersion string) ([]ClassifierResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	ids := make([]string, len(batch))
	texts := make([]string, len(batch))
	for i, in := range batch {
		ids[i] = in.ID
		texts[i] = in.Text
	}

	userPrompt, err := prompts.UserPrompt(ids, texts)
	if err != nil {
		return nil, err
	}
	systemPrompt := prompts.SystemPrompt(promptVersion)

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		results, err := c.callOnce(ctx, systemPrompt, userPrompt, ids, texts)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("classifier failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *GeminiClassifier) callOnce(ctx context.Context, systemPrompt, userPrompt string, ids, texts []string) ([]ClassifierResult, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: systemPrompt + "\n\n" + userPrompt}},
			},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var resp geminiResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to call classifier API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else if len(httpResp.Body()) > 0 {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return nil, fmt.Errorf("classifier API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("classifier API error: %s", resp.Error.Message)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no candidates in classifier response (status: %d)", httpResp.StatusCode())
	}

	content := resp.Candidates[0].Content.Parts[0].Text

	var parsed classifierItems
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode classifier output: %w", err)
	}

	// The API does not report usage for this endpoint shape; estimate tokens
	// the same way the dashboard expects costs to be computed.
	promptLen := len(systemPrompt) + len(userPrompt)
	tokensIn := promptLen / 4
	tokensOut := len(content) / 4
	cost := float64(tokensIn)/1000*c.costPer1kInput + float64(tokensOut)/1000*c.costPer1kOutput

	n := len(ids)
	byID := make(map[string]classifierItem, len(parsed.Items))
	for _, item := range parsed.Items {
		byID[item.CommentID] = item
	}

	results := make([]ClassifierResult, 0, n)
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			// Missing ids become zero-confidence results so the batcher can
			// mark the comment errored without failing the chunk.
			zero := 0.0
			results = append(results, ClassifierResult{
				CommentID:  id,
				Emotions:   []string{},
				Topics:     []string{},
				Summary:    "missing from model output",
				Confidence: &zero,
				Raw:        content,
			})
			continue
		}
		results = append(results, ClassifierResult{
			CommentID:  id,
			Score:      item.Score,
			Polarity:   item.Polarity,
			Intensity:  item.Intensity,
			Emotions:   item.Emotions,
			Topics:     item.Topics,
			Sarcasm:    item.Sarcasm,
			Summary:    item.Summary,
			Confidence: item.Confidence,
			TokensIn:   tokensIn / n,
			TokensOut:  tokensOut / n,
			CostUSD:    cost / float64(n),
			Raw:        content,
		})
	}
	return results, nil
}
