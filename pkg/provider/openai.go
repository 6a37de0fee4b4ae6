package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIName is the configuration name of the OpenAI provider.
const OpenAIName = "openai"

// openaiChat captures the subset of the OpenAI SDK client the adapter
// uses. It is satisfied by the SDK's chat completion service so tests can
// pass a mock.
type openaiChat interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI is an Invoker backed by the OpenAI Chat Completions API.
type OpenAI struct {
	chat      openaiChat
	model     string
	maxTokens int
}

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	// Model is the chat model identifier.
	Model string

	// MaxTokens is the default completion cap when a request does not
	// specify one.
	MaxTokens int
}

// NewOpenAI constructs an adapter using the default OpenAI HTTP client and
// the given API key.
func NewOpenAI(apiKey string, opts OpenAIOptions) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return newOpenAI(&client.Chat.Completions, opts)
}

func newOpenAI(chat openaiChat, opts OpenAIOptions) (*OpenAI, error) {
	if opts.Model == "" {
		return nil, errors.New("openai: model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &OpenAI{chat: chat, model: opts.Model, maxTokens: maxTokens}, nil
}

// Name implements Invoker.
func (o *OpenAI) Name() string { return OpenAIName }

// Invoke issues one chat completion request and returns the first choice.
func (o *OpenAI) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, &Error{Provider: OpenAIName, Operation: req.Operation,
			Kind: KindInvalidRequest, Message: "prompt is required"}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.model),
		Messages:            messages,
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	})
	if err != nil {
		return nil, o.classify(req.Operation, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, &Error{Provider: OpenAIName, Operation: req.Operation,
			Kind: KindUnknown, Message: "response contained no text"}
	}

	return &Response{
		Text:         resp.Choices[0].Message.Content,
		Provider:     OpenAIName,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// classify maps an SDK failure onto the provider error taxonomy, honoring
// Retry-After on throttling responses.
func (o *OpenAI) classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: OpenAIName, Operation: op, Kind: KindTimeout,
			Message: "request aborted", Err: err}
	}

	var apierr *openai.Error
	if errors.As(err, &apierr) {
		e := &Error{
			Provider:  OpenAIName,
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

	return &Error{Provider: OpenAIName, Operation: op, Kind: KindUnknown,
		Message: "request failed", Err: err}
}
