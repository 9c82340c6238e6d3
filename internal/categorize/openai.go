package categorize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const llmTimeout = 15 * time.Second

// OpenAIChooser asks a chat model to pick a category name.
type OpenAIChooser struct {
	client *openai.Client
	model  string
}

func NewOpenAIChooser(apiKey, model string) *OpenAIChooser {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIChooser{client: openai.NewClient(apiKey), model: model}
}

type llmAnswer struct {
	Category string `json:"category"`
}

func (o *OpenAIChooser) ChooseCategory(ctx context.Context, description, merchant string, categories []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(description, merchant, categories)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return parseAnswer(resp.Choices[0].Message.Content)
}

const systemPrompt = `You classify personal finance transactions. ` +
	`Answer with a JSON object {"category": "<name>"} using exactly one of the offered names, ` +
	`or {"category": ""} when none fits.`

func buildPrompt(description, merchant string, categories []string) string {
	var b strings.Builder
	b.WriteString("Categories:\n")
	for _, c := range categories {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nDescription: %s\n", description)
	if merchant != "" {
		fmt.Fprintf(&b, "Merchant: %s\n", merchant)
	}
	return b.String()
}

func parseAnswer(content string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	var a llmAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &a); err != nil {
		return "", fmt.Errorf("decode llm answer: %w", err)
	}
	return strings.TrimSpace(a.Category), nil
}
