// Package nlu maps free-form utterances onto one of the assistant's command
// rules with an LLM, for transcripts no phrase matched.
package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"slices"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// NoRule is what the model answers when nothing fits.
const NoRule = "none"

var ErrEmptyReply = errors.New("empty completion")

const systemPrompt = `
You are the intent classifier of a desktop assistant.
Your ONLY job is to pick which command the user's utterance asks for.

RULES:
1. Do NOT converse or explain.
2. Output ONLY JSON, no markdown: {"rule": "<name>"}
3. <name> MUST be one of the names listed below, or "none".
4. If the request is unclear or not a command, answer "none".

COMMANDS:
%s
`

type Classifier struct {
	client openai.Client
	model  openai.ChatModel
}

func NewClassifier(apiKey string, httpClient *http.Client) *Classifier {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Classifier{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT5Nano,
	}
}

func prompt(rules []string) string {
	var b strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return fmt.Sprintf(systemPrompt, b.String())
}

// Classify returns a rule name from rules, or "" when the model picked
// none of them.
func (c *Classifier) Classify(ctx context.Context, text string, rules []string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt(rules)),
			openai.UserMessage(text),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}

	content := resp.Choices[0].Message.Content
	log.Debug("Intent reply", "data", content)

	return parseRule(content, rules)
}

type reply struct {
	Rule string `json:"rule"`
}

func parseRule(content string, rules []string) (string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.Trim(content, "` \n")
	if content == "" {
		return "", ErrEmptyReply
	}

	var out reply
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return "", fmt.Errorf("unmarshal intent: %w (raw: %s)", err, content)
	}

	name := strings.ToLower(strings.TrimSpace(out.Rule))
	if name == NoRule || !slices.Contains(rules, name) {
		return "", nil
	}
	return name, nil
}
