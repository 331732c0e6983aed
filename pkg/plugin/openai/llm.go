package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/sashabaranov/go-openai"

	"github.com/lumentra-ai/callagent/pkg/ai"
	"github.com/lumentra-ai/callagent/pkg/ai/llm"
)

// LLM implements llm.LLM over OpenAI's streaming chat completion API.
type LLM struct {
	client *openai.Client
	model  string
}

// LLMConfig configures the OpenAI LLM adapter.
type LLMConfig struct {
	APIKey string
	Model  string // default: gpt-4o
}

// NewLLM creates an OpenAI-backed LLM.
func NewLLM(cfg LLMConfig) (*LLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}
	return &LLM{client: openai.NewClient(cfg.APIKey), model: model}, nil
}

func newOpenAILLM(config map[string]any) (any, error) {
	cfg := LLMConfig{APIKey: apiKeyFrom(config)}
	if model, ok := config["model"].(string); ok {
		cfg.Model = model
	}
	return NewLLM(cfg)
}

func apiKeyFrom(config map[string]any) string {
	if key, ok := config["api_key"].(string); ok && key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}

func (o *LLM) Name() string { return "openai/" + o.model }

func toOpenAIMessages(req llm.ChatRequest) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.History {
		msgs = append(msgs, toOpenAIMessage(m))
	}
	if req.UserMessage != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserMessage})
	}
	return msgs
}

func toOpenAIMessage(m llm.ChatMessage) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	if m.Role == llm.RoleTool {
		out.ToolCallID = m.ToolCallID
		out.Name = m.ToolName
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func toOpenAITools(defs []llm.ToolDefinition) []openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, len(defs))
	for i, d := range defs {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return tools
}

// StreamChat starts a streaming completion against the Chat Completions API.
func (o *LLM) StreamChat(ctx context.Context, req llm.ChatRequest) (llm.ChatStream, error) {
	completionReq := openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: toOpenAIMessages(req),
		Tools:    toOpenAITools(req.Tools),
		Stream:   true,
	}

	raw, err := o.client.CreateChatCompletionStream(ctx, completionReq)
	if err != nil {
		return nil, classifyErr(err)
	}
	return &chatStream{raw: raw, provider: o.Name(), pending: make(map[int]*llm.ToolCall)}, nil
}

// chatStream adapts openai.ChatCompletionStream, accumulating tool-call
// argument deltas by index until the stream's final chunk, then draining
// them as ChunkToolCall entries before the terminal ChunkDone.
type chatStream struct {
	raw      *openai.ChatCompletionStream
	provider string

	pending map[int]*llm.ToolCall
	order   []int
	drained []llm.StreamChunk
	done    bool
}

func (s *chatStream) Recv(ctx context.Context) (llm.StreamChunk, error) {
	if len(s.drained) > 0 {
		chunk := s.drained[0]
		s.drained = s.drained[1:]
		return chunk, nil
	}
	if s.done {
		return llm.StreamChunk{}, io.EOF
	}

	for {
		resp, err := s.raw.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			s.flushToolCalls()
			s.drained = append(s.drained, llm.StreamChunk{Kind: llm.ChunkDone, Provider: s.provider})
			return s.Recv(ctx)
		}
		if err != nil {
			return llm.StreamChunk{Kind: llm.ChunkError, Err: classifyErr(err), Provider: s.provider}, classifyErr(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			return llm.StreamChunk{Kind: llm.ChunkText, Text: delta.Content, Provider: s.provider}, nil
		}
		if len(delta.ToolCalls) > 0 {
			s.accumulate(delta.ToolCalls)
			continue
		}
	}
}

func (s *chatStream) accumulate(deltas []openai.ToolCall) {
	for _, d := range deltas {
		idx := 0
		if d.Index != nil {
			idx = *d.Index
		}
		tc, ok := s.pending[idx]
		if !ok {
			tc = &llm.ToolCall{}
			s.pending[idx] = tc
			s.order = append(s.order, idx)
		}
		if d.ID != "" {
			tc.ID = d.ID
		}
		if d.Function.Name != "" {
			tc.Name = d.Function.Name
		}
		tc.Arguments += d.Function.Arguments
	}
}

func (s *chatStream) flushToolCalls() {
	sort.Ints(s.order)
	for _, idx := range s.order {
		tc := s.pending[idx]
		s.drained = append(s.drained, llm.StreamChunk{Kind: llm.ChunkToolCall, ToolCall: *tc, Provider: s.provider})
	}
}

func (s *chatStream) Close() error {
	return s.raw.Close()
}

func classifyErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429, 500, 502, 503, 504:
			return ai.NewRecoverableError(err, "openai: "+err.Error())
		}
	}
	slog.Debug("openai: treating error as fatal", slog.String("error", err.Error()))
	return ai.NewFatalError(err, "openai: "+err.Error())
}
