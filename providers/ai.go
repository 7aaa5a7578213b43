// Copyright 2025 RelayCore
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// ChatMessage is one turn of conversation history passed to the AI backend
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIBackend produces a completion for a conversation. The async job workers
// call it off the request path; implementations may take arbitrarily long
// within the job context's deadline.
type AIBackend interface {
	Complete(ctx context.Context, history []ChatMessage, prompt string, creds map[string]string) (string, error)
}

const defaultAIModel = "gpt-4o-mini"

// OpenAIBackend implements AIBackend over an OpenAI-compatible chat API.
// Credential keys: API_KEY. An empty BaseURL targets the public endpoint.
type OpenAIBackend struct {
	BaseURL string
	Model   string
	System  string
}

// NewOpenAIBackend creates a backend with the default model
func NewOpenAIBackend() *OpenAIBackend {
	return &OpenAIBackend{Model: defaultAIModel}
}

// Complete runs one chat completion over the supplied history plus prompt
func (b *OpenAIBackend) Complete(ctx context.Context, history []ChatMessage, prompt string, creds map[string]string) (string, error) {
	apiKey, err := requireCred(creds, "ai", "API_KEY")
	if err != nil {
		return "", err
	}

	cfg := openai.DefaultConfig(apiKey)
	if b.BaseURL != "" {
		cfg.BaseURL = b.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)

	model := b.Model
	if model == "" {
		model = defaultAIModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if b.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: b.System,
		})
	}
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", NewError("ai", 0, "completion failed: %v", err)
	}
	if len(resp.Choices) == 0 {
		return "", NewError("ai", 0, "completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// StaticAIBackend returns a canned completion; used in tests and local mode
type StaticAIBackend struct {
	Reply string
	Err   error
	// Calls records every prompt for assertions
	Calls []string
}

func (b *StaticAIBackend) Complete(ctx context.Context, history []ChatMessage, prompt string, creds map[string]string) (string, error) {
	b.Calls = append(b.Calls, prompt)
	if b.Err != nil {
		return "", b.Err
	}
	if b.Reply == "" {
		return fmt.Sprintf("echo: %s", prompt), nil
	}
	return b.Reply, nil
}
