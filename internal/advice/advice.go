// Package advice asks a language model for outfit suggestions built from a
// user's wardrobe.
package advice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"
)

// Suggestion is one styled outfit.
type Suggestion struct {
	Title       string   `json:"title"`
	Advice      string   `json:"advice"`
	Combination []string `json:"combination"`
}

// Generator produces outfit suggestions.
type Generator interface {
	GenerateAdvice(ctx context.Context, items []string, occasion string) (*Suggestion, error)
}

// DefaultOccasion is used when the user names none.
const DefaultOccasion = "A stylish night out"

// DefaultModel is used when none is configured.
const DefaultModel = openai.GPT4oMini

var (
	ErrNoItems         = errors.New("closet is empty. Scan items first")
	ErrInvalidResponse = errors.New("stylist returned an unusable suggestion")
)

// suggestionSchema is what a model reply must satisfy.
var suggestionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"title":  map[string]any{"type": "string", "minLength": 1},
		"advice": map[string]any{"type": "string", "minLength": 1},
		"combination": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"minItems": 1,
		},
	},
	"required": []any{"title", "advice", "combination"},
}

// Config configures a Client. BaseURL may point at any OpenAI-compatible
// endpoint; empty means the public OpenAI API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is a Generator backed by an OpenAI-compatible chat completion API.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClientWithConfig(oc), model: model}
}

// GenerateAdvice picks a few of items for occasion and explains how to wear
// them together.
func (c *Client) GenerateAdvice(ctx context.Context, items []string, occasion string) (*Suggestion, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if strings.TrimSpace(occasion) == "" {
		occasion = DefaultOccasion
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(items, occasion)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting advice: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	return Parse(resp.Choices[0].Message.Content)
}

const systemPrompt = "You are an elite AI Fashion Stylist. Reply with a JSON object " +
	`with the keys "title" (string), "advice" (string) and "combination" (array of item names).`

// Prompt is the user message sent for a wardrobe and occasion.
func Prompt(items []string, occasion string) string {
	return fmt.Sprintf("Given the user's available wardrobe: [%s].\n"+
		"The user is dressing for this occasion: %q.\n"+
		"Select 3-4 specific items from the list and explain how to combine them.\n"+
		"Return as JSON.", strings.Join(items, ", "), occasion)
}

// Parse extracts and validates a suggestion from a model reply.
func Parse(content string) (*Suggestion, error) {
	raw := ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(suggestionSchema),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(msgs, "; "))
	}

	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &s, nil
}
