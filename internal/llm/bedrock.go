// Package llm invokes the report-generation model through Amazon Bedrock.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/rs/zerolog"
)

type bedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Bedrock sends prompts to an Anthropic model via the Bedrock runtime.
type Bedrock struct {
	api     bedrockAPI
	modelID string
	log     zerolog.Logger
}

func NewBedrock(awsCfg aws.Config, modelID string, log zerolog.Logger) *Bedrock {
	return &Bedrock{
		api:     bedrockruntime.NewFromConfig(awsCfg),
		modelID: modelID,
		log:     log.With().Str("component", "bedrock").Logger(),
	}
}

// NewBedrockWithAPI builds a client around an explicit API, for tests.
func NewBedrockWithAPI(api bedrockAPI, modelID string, log zerolog.Logger) *Bedrock {
	return &Bedrock{api: api, modelID: modelID, log: log}
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Invoke sends prompt and returns the model's text output.
func (b *Bedrock) Invoke(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal bedrock request: %w", err)
	}

	out, err := b.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke %s: %w", b.modelID, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode bedrock response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	b.log.Debug().Str("stop_reason", resp.StopReason).Int("chars", sb.Len()).Msg("bedrock response received")
	return sb.String(), nil
}
