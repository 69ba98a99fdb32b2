package aigen

import (
	"context"
	"strings"

	"github.com/Abraxas-365/craftable/ai/llm"
	"github.com/Abraxas-365/craftable/ai/providers/aiopenai"
	"github.com/Abraxas-365/craftable/errx"
	"github.com/Abraxas-365/craftable/ptrx"
	"github.com/Abraxas-365/supportflow/engine"
)

// Config model settings for generated replies
type Config struct {
	Model        string
	SystemPrompt string
	Temperature  *float32
	MaxTokens    *int
}

type chatFunc func(ctx context.Context, messages []llm.Message) (string, error)

// Generator produces ai_reply answers through an LLM
type Generator struct {
	systemPrompt string
	chat         chatFunc
}

var _ engine.Generator = (*Generator)(nil)

// NewOpenAIGenerator creates a generator backed by the OpenAI provider
func NewOpenAIGenerator(apiKey string, cfg Config) *Generator {
	return NewGenerator(llm.NewClient(aiopenai.NewOpenAIProvider(apiKey)), cfg)
}

// NewGenerator creates a generator on top of an existing llm client
func NewGenerator(client *llm.Client, cfg Config) *Generator {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Generator{
		systemPrompt: cfg.SystemPrompt,
		chat: func(ctx context.Context, messages []llm.Message) (string, error) {
			resp, err := client.Chat(ctx, messages,
				llm.WithModel(model),
				llm.WithTemperature(ptrx.Float32ValueOr(cfg.Temperature, 0.7)),
				llm.WithMaxTokens(ptrx.IntValueOr(cfg.MaxTokens, 1000)),
			)
			if err != nil {
				return "", err
			}
			return resp.Message.Content, nil
		},
	}
}

// Generate answers the customer message. Block instructions are appended to
// the configured system prompt.
func (g *Generator) Generate(ctx context.Context, message, instructions string) (string, error) {
	reply, err := g.chat(ctx, g.messages(message, instructions))
	if err != nil {
		return "", errx.Wrap(err, "LLM call failed", errx.TypeExternal)
	}
	return strings.TrimSpace(reply), nil
}

func (g *Generator) messages(message, instructions string) []llm.Message {
	var system []string
	if p := strings.TrimSpace(g.systemPrompt); p != "" {
		system = append(system, p)
	}
	if i := strings.TrimSpace(instructions); i != "" {
		system = append(system, i)
	}

	var messages []llm.Message
	if len(system) > 0 {
		messages = append(messages, llm.NewSystemMessage(strings.Join(system, "\n\n")))
	}
	return append(messages, llm.NewUserMessage(message))
}
