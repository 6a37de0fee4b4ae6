package provider

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicName is the configuration name of the Anthropic provider.
const AnthropicName = "anthropic"

// anthropicMessages captures the subset of the Anthropic SDK client the
// adapter uses. It is satisfied by *sdk.MessageService so tests can pass a
// mock.
type anthropicMessages interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Anthropic is an Invoker backed by the Anthropic Messages API.
type Anthropic struct {
	msg       anthropicMessages
	model     string
	maxTokens int
}

// AnthropicOptions configures the Anthropic adapter.
type AnthropicOptions struct {
	// Model is the Claude model identifier.
	Model string

	// MaxTokens is the default completion cap when a request does not
	// specify one.
	MaxTokens int
}

// NewAnthropic constructs an adapter using the default Anthropic HTTP
// client and the given API key.
func NewAnthropic(apiKey string, opts AnthropicOptions) (*Anthropic, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return newAnthropic(&client.Messages, opts)
}

func newAnthropic(msg anthropicMessages, opts AnthropicOptions) (*Anthropic, error) {
	if opts.Model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Anthropic{msg: msg, model: opts.Model, maxTokens: maxTokens}, nil
}

// Name implements Invoker.
func (a *Anthropic) Name() string { return AnthropicName }

// Invoke issues a non-streaming Messages.New request and concatenates the
// text blocks of the response.
func (a *Anthropic) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, &Error{Provider: AnthropicName, Operation: req.Operation,
			Kind: KindInvalidRequest, Message: "prompt is required"}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := a.msg.New(ctx, params)
	if err != nil {
		return nil, a.classify(req.Operation, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, &Error{Provider: AnthropicName, Operation: req.Operation,
			Kind: KindUnknown, Message: "response contained no text"}
	}

	return &Response{
		Text:         text,
		Provider:     AnthropicName,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}

// classify maps an SDK failure onto the provider error taxonomy, honoring
// Retry-After on throttling responses.
func (a *Anthropic) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: AnthropicName, Operation: op, Kind: KindTimeout,
			Message: "request aborted", Err: err}
	}

	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		e := &Error{
			Provider:  AnthropicName,
			Operation: op,
			Kind:      classifyStatus(apierr.StatusCode),
			Message:   fmt.Sprintf("api error, status %d", apierr.StatusCode),
			Err:       err,
		}
		if apierr.Response != nil {
			e.RetryAfter = retryAfterFromHeader(apierr.Response.Header)
		}
		return e
	}

	return &Error{Provider: AnthropicName, Operation: op, Kind: KindUnknown,
		Message: "request failed", Err: err}
}
