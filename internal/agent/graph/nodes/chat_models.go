package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/leadpilot-ai/server/internal/agent/model"
	logx "github.com/leadpilot-ai/server/pkg/logger"
)

// ChatModelConfig holds what chat model creation needs.
type ChatModelConfig struct {
	APIKey         string
	BaseURL        string
	DecisionConfig *model.DecisionModelConfig
	RespConfig     *model.ResponseModelConfig
}

// ChatModels holds the decision and response chat models. Both share one
// Gemini client; they differ in model name and sampling settings.
type ChatModels struct {
	Client            *genai.Client
	Decision          *gemini.ChatModel
	Response          *gemini.ChatModel
	DecisionModelName string
	ResponseModelName string
}

// NewChatModels creates both chat models with the given configuration.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	chatModelDecision, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.DecisionConfig.Model,
		Temperature: &config.DecisionConfig.Temperature,
		MaxTokens:   &config.DecisionConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating decision model")
		return nil, fmt.Errorf("error creating decision model: %w", err)
	}

	chatModelResponse, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Client:            client,
		Decision:          chatModelDecision,
		Response:          chatModelResponse,
		DecisionModelName: config.DecisionConfig.Model,
		ResponseModelName: config.RespConfig.Model,
	}, nil
}
