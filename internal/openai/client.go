package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/nutrikb/internal/domain"
	"github.com/cloo-solutions/nutrikb/internal/vector"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.LargeEmbedding3
	// DefaultCompletionModel is the chat model used by the prompt composer
	DefaultCompletionModel = openai.GPT4oMini
	// DefaultMaxInputChars caps each embedding input before submission
	DefaultMaxInputChars = 6000
)

var (
	// ErrNoEmbeddingData is returned when the service answers without vectors
	ErrNoEmbeddingData = errors.New("no embedding data returned")
	// ErrNoChoices is returned when a completion has no choices
	ErrNoChoices = errors.New("no completion choices returned")
)

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = openai.ChatMessageRoleSystem
	RoleUser      Role = openai.ChatMessageRoleUser
	RoleAssistant Role = openai.ChatMessageRoleAssistant
)

// Message is one role-tagged entry of a completion request.
type Message struct {
	Role    Role
	Content string
}

// EmbeddingAPI defines the interface for batch embedding generation.
// Rows are returned in input order.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)
}

// ChatAPI defines the interface for text completion.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, messages []Message, temperature float32) (string, error)
}

// Client wraps the OpenAI API client
type Client struct {
	embeddings EmbeddingAPI
	chat       ChatAPI
	maxChars   int
	dimensions int
}

type OpenAIAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}
	chatModel := cfg.CompletionModel
	if chatModel == "" {
		chatModel = DefaultCompletionModel
	}
	return &OpenAIAdapter{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: model,
		chatModel:      chatModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings for a batch
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingData
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) || out[idx] != nil {
			// indices are unusable; fall back to response order
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// CreateChatCompletion calls the OpenAI chat completion API
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, messages []Message, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.chatModel,
		Temperature: temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// Config is the resolved configuration for the OpenAI collaborator.
type Config struct {
	APIKey          string
	BaseURL         string
	EmbeddingModel  openai.EmbeddingModel
	CompletionModel string
	// MaxInputChars truncates each embedding input; 0 uses DefaultMaxInputChars.
	MaxInputChars int
	// Dimensions, when set, is enforced on every returned vector.
	Dimensions int
}

// NewClient creates a client from resolved configuration. A missing API key
// is a configuration error and no client is built.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	adapter := NewOpenAIAdapter(cfg)
	return NewClientWithAPIs(adapter, adapter, cfg.MaxInputChars, cfg.Dimensions), nil
}

// NewClientWithAPIs builds a client over explicit API implementations.
func NewClientWithAPIs(embeddings EmbeddingAPI, chat ChatAPI, maxChars, dimensions int) *Client {
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	return &Client{
		embeddings: embeddings,
		chat:       chat,
		maxChars:   maxChars,
		dimensions: dimensions,
	}
}

// Embed returns one unit-length vector per input, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c == nil || c.embeddings == nil {
		return nil, domain.ErrEmbeddingNotConfigured
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = truncate(t, c.maxChars)
	}

	vecs, err := c.embeddings.CreateEmbeddings(ctx, inputs)
	if err != nil {
		return nil, domain.NewServiceError("embedding request failed", err)
	}

	if len(vecs) != len(inputs) {
		return nil, domain.NewServiceError("malformed embedding response",
			fmt.Errorf("got %d vectors for %d inputs", len(vecs), len(inputs)))
	}

	dim := c.dimensions
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, domain.NewServiceError("malformed embedding response", fmt.Errorf("vector %d is empty", i))
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return nil, domain.NewServiceError("malformed embedding response",
				fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dim))
		}
	}

	return vector.NormalizeAll(vecs), nil
}

// EmbedOne embeds a single text.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Complete returns the completion text for a role-tagged message list.
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float32) (string, error) {
	if c == nil || c.chat == nil {
		return "", domain.ErrCompletionNotConfigured
	}
	out, err := c.chat.CreateChatCompletion(ctx, messages, temperature)
	if err != nil {
		return "", domain.NewServiceError("completion request failed", err)
	}
	return out, nil
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
