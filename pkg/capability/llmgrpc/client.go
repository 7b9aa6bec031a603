// Package llmgrpc implements capability.LLM against an out-of-process model
// backend over gRPC. It speaks a single untyped RPC method
// ("/analystrt.llm.Backend/Generate") carrying google.protobuf.Struct
// payloads rather than a generated request/response pair, so the client
// needs no protoc-compiled stub package — the backend just needs to agree
// on the same JSON-shaped field names.
package llmgrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dataloom/analystrt/pkg/capability"
)

const (
	generateMethod = "/analystrt.llm.Backend/Generate"
	embedMethod    = "/analystrt.llm.Backend/Embed"
)

// Client is a capability.LLM backed by a gRPC connection to a model
// backend. One Client is bound to a single provider/model pair; the
// runtime constructs one per configured tier.
type Client struct {
	conn  *grpc.ClientConn
	model string
}

// Dial opens a gRPC connection to addr and binds it to model. The
// connection is lazy: Dial succeeds even if the backend isn't listening
// yet, matching grpc.NewClient's non-blocking semantics.
func Dial(addr, model string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial llm backend %s: %w", addr, err)
	}
	return &Client{conn: conn, model: model}, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// wireMessage is the JSON shape of capability.Message sent over the wire.
type wireMessage struct {
	Role       string          `json:"role"`
	Content    string          `json:"content"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolName   string          `json:"tool_name,omitempty"`
}

type wireToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolSchema struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ArgsSchema  string `json:"args_schema"`
}

type wireRequest struct {
	Messages    []wireMessage    `json:"messages"`
	Model       string           `json:"model"`
	Tools       []wireToolSchema `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type wireResponse struct {
	Message      wireMessage `json:"message"`
	Usage        wireUsage   `json:"usage"`
	FinishReason string      `json:"finish_reason"`
}

// Chat performs one blocking invocation against the backend.
func (c *Client) Chat(ctx context.Context, req capability.ChatRequest) (capability.ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	payload, err := encodeRequest(req)
	if err != nil {
		return capability.ChatResponse{}, fmt.Errorf("encode chat request: %w", err)
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, generateMethod, payload, reply); err != nil {
		return capability.ChatResponse{}, fmt.Errorf("llm backend generate: %w", err)
	}

	return decodeResponse(reply)
}

// Stream performs one invocation and replays it as a single-chunk stream.
// The backend's Generate method is unary; true token-level streaming would
// need a server-streaming RPC on the backend side. The bypass tiers forward
// each chunk as it arrives, so a reply from this client reaches the wire as
// a single content event.
func (c *Client) Stream(ctx context.Context, req capability.ChatRequest) (<-chan capability.StreamChunk, error) {
	resp, err := c.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan capability.StreamChunk, 2)
	ch <- capability.StreamChunk{TextDelta: resp.Message.Content}
	ch <- capability.StreamChunk{Usage: &resp.Usage, FinishReason: resp.FinishReason}
	close(ch)
	return ch, nil
}

// Embed implements capability.Embedder against the same backend, so a
// configured model backend can serve both chat and embedding calls over one
// connection.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := structpb.NewStruct(map[string]any{
		"model": c.model,
		"texts": toAnySlice(texts),
	})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, embedMethod, payload, reply); err != nil {
		return nil, fmt.Errorf("llm backend embed: %w", err)
	}

	raw, err := json.Marshal(reply.AsMap())
	if err != nil {
		return nil, err
	}
	var wire struct {
		Vectors [][]float32 `json:"vectors"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode embed reply: %w", err)
	}
	return wire.Vectors, nil
}

func toAnySlice(texts []string) []any {
	out := make([]any, len(texts))
	for i, t := range texts {
		out[i] = t
	}
	return out
}

func encodeRequest(req capability.ChatRequest) (*structpb.Struct, error) {
	wire := wireRequest{
		Model:       req.Model,
		ToolChoice:  req.ToolChoice,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, m := range req.Messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID, ToolName: m.ToolName}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		wire.Messages = append(wire.Messages, wm)
	}
	for _, t := range req.Tools {
		wire.Tools = append(wire.Tools, wireToolSchema{Name: t.Name, Description: t.Description, ArgsSchema: t.ArgsSchema})
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func decodeResponse(s *structpb.Struct) (capability.ChatResponse, error) {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return capability.ChatResponse{}, err
	}
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return capability.ChatResponse{}, fmt.Errorf("decode backend reply: %w", err)
	}

	resp := capability.ChatResponse{
		Message: capability.Message{
			Role:       wire.Message.Role,
			Content:    wire.Message.Content,
			ToolCallID: wire.Message.ToolCallID,
			ToolName:   wire.Message.ToolName,
		},
		Usage: capability.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
		FinishReason: wire.FinishReason,
	}
	for _, tc := range wire.Message.ToolCalls {
		resp.Message.ToolCalls = append(resp.Message.ToolCalls, capability.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	return resp, nil
}
