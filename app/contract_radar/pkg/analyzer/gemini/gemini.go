package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// ContentGenerator genai.Models 中本包用到的部分
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client 基于 Gemini 的分段分析客户端，使用 JSON 响应模式
type Client struct {
	models      ContentGenerator
	model       string
	temperature float32
	maxTokens   int32
}

// NewClient 创建客户端
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return New(client.Models, cfg), nil
}

// New 使用已有的 genai Models 创建客户端
func New(models ContentGenerator, cfg config.LLMConfig) *Client {
	return &Client{
		models:      models,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}
}

// Model 返回模型名称
func (c *Client) Model() string {
	return c.model
}

// Complete 发送一个分段并返回模型原始输出
func (c *Client) Complete(ctx context.Context, seg model.Segment) (string, error) {
	system, user := analyzer.Prompt(seg)

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: user}}},
	}
	temperature := c.temperature
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
		Temperature:       &temperature,
		MaxOutputTokens:   c.maxTokens,
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %v", analyzer.ErrRateLimited, err)
		}
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", analyzer.ErrMalformedResponse)
	}
	return resp.Text(), nil
}

func responseSchema() *genai.Schema {
	titled := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString, Description: "Short name of the issue."},
			"description": {Type: genai.TypeString, Description: "Why it matters for the client."},
		},
		Required: []string{"title"},
	}
	texted := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":        {Type: genai.TypeString, Description: "The quoted language or the recommendation."},
			"explanation": {Type: genai.TypeString},
		},
		Required: []string{"text"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallScore":    {Type: genai.TypeInteger, Description: "Risk score from 0 to 100."},
			"criticalPoints":  {Type: genai.TypeArray, Items: titled},
			"financialRisks":  {Type: genai.TypeArray, Items: titled},
			"unusualLanguage": {Type: genai.TypeArray, Items: texted},
			"recommendations": {Type: genai.TypeArray, Items: texted},
		},
		Required: []string{"overallScore", "criticalPoints", "financialRisks", "unusualLanguage", "recommendations"},
	}
}
