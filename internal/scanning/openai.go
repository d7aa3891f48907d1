package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultOpenAIVisionModel = "gpt-4o"
	defaultOpenAITextModel   = "gpt-4o"
)

// OpenAI implements the Scanner interface using the OpenAI chat completions API
type OpenAI struct {
	client      openai.Client
	visionModel openai.ChatModel
	textModel   openai.ChatModel
}

// NewOpenAI creates a new OpenAI Scanner instance.
// Extra request options (base URL, HTTP client) are passed through to the SDK.
func NewOpenAI(apiKey, visionModel, textModel string, opts ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if visionModel == "" {
		visionModel = defaultOpenAIVisionModel
	}
	if textModel == "" {
		textModel = defaultOpenAITextModel
	}

	// Failed calls surface to the caller as-is; the SDK would otherwise retry twice
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAI{
		client:      openai.NewClient(clientOpts...),
		visionModel: openai.ChatModel(visionModel),
		textModel:   openai.ChatModel(textModel),
	}, nil
}

// ExtractText sends the receipt image to the vision model and returns the raw text
func (o *OpenAI) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	finalImageData, mimeType, err := prepareImageData(imageData, contentType)
	if err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(finalImageData))

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.visionModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(extractionPrompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		MaxCompletionTokens: openai.Int(maxResponseTokens),
	})
	if err != nil {
		return "", fmt.Errorf("calling openai: %w", err)
	}

	return firstChoiceText(resp)
}

// StructureReceipt asks the text model to turn raw receipt text into JSON
func (o *OpenAI) StructureReceipt(ctx context.Context, rawText string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.textModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildStructuringPrompt(rawText)),
		},
		Temperature:         openai.Float(structuringTemperature),
		MaxCompletionTokens: openai.Int(maxResponseTokens),
	})
	if err != nil {
		return "", fmt.Errorf("calling openai: %w", err)
	}

	return firstChoiceText(resp)
}

func firstChoiceText(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("no response from openai")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Close is a no-op; the SDK holds no long-lived resources
func (o *OpenAI) Close() error {
	return nil
}
