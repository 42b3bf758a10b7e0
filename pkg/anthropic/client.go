// Package anthropic wraps the official SDK behind the small request/response
// surface the transcription engine relies on: a streamed Messages call for
// transcription attempts and a single-shot call for verification.
package anthropic

import (
	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"context"
)

// Client defines the inference operations used by the engine.
type Client interface {
	// StreamMessage issues a streamed Messages call, invoking onFragment for
	// each text fragment in order, and returns the final response with the
	// concatenated text once the stream terminates.
	StreamMessage(ctx context.Context, req MessageRequest, onFragment func(string)) (*MessageResponse, error)

	// CreateMessage issues a non-streaming single-shot call.
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is our own request type.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Parts       []ContentPart
	Temperature *float64
}

// ContentPart is one ordered content part: either text or inline
// base64-encoded media.
type ContentPart struct {
	Text     string
	MimeType string
	Data     string
}

// TextPart builds a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Text: text}
}

// MediaPart builds an inline-encoded media content part.
func MediaPart(mimeType, data string) ContentPart {
	return ContentPart{MimeType: mimeType, Data: data}
}

// MessageResponse is our own response type.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// sdkClient implements Client using the official anthropic-sdk-go, pacing
// requests through a client-side limiter.
type sdkClient struct {
	client  sdk.Client
	limiter *rate.Limiter
}

// NewClient creates a new Anthropic client. requestsPerSec <= 0 disables
// pacing.
func NewClient(apiKey string, requestsPerSec float64) Client {
	limit := rate.Inf
	if requestsPerSec > 0 {
		limit = rate.Limit(requestsPerSec)
	}
	return &sdkClient{
		client:  sdk.NewClient(option.WithAPIKey(apiKey)),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (c *sdkClient) StreamMessage(ctx context.Context, req MessageRequest, onFragment func(string)) (*MessageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anthropic: limiter wait")
	}

	stream := c.client.Messages.NewStreaming(ctx, toSDKParams(req))

	acc := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, eris.Wrap(err, "anthropic: accumulate stream event")
		}
		switch eventVariant := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			if delta, ok := eventVariant.Delta.AsAny().(sdk.TextDelta); ok && delta.Text != "" {
				if onFragment != nil {
					onFragment(delta.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, eris.Wrap(err, "anthropic: stream message")
	}

	return fromSDKMessage(&acc), nil
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "anthropic: limiter wait")
	}

	msg, err := c.client.Messages.New(ctx, toSDKParams(req))
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	return fromSDKMessage(msg), nil
}

// --- SDK type conversion helpers ---

func toSDKParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(toSDKParts(req.Parts)...)},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	return params
}

func toSDKParts(parts []ContentPart) []sdk.ContentBlockParamUnion {
	out := make([]sdk.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.MimeType == "application/pdf":
			out = append(out, sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: p.Data}))
		case p.MimeType != "":
			out = append(out, sdk.NewImageBlockBase64(p.MimeType, p.Data))
		default:
			out = append(out, sdk.NewTextBlock(p.Text))
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	var text string
	for _, b := range msg.Content {
		if b.Type == "text" {
			text += b.Text
		}
	}

	resp := &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       text,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	if resp.StopReason == "max_tokens" {
		zap.L().Warn("anthropic: response truncated at max tokens",
			zap.String("model", resp.Model),
			zap.Int64("output_tokens", resp.Usage.OutputTokens),
		)
	}

	return resp
}
