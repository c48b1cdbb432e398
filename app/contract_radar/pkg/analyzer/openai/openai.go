package openai

import (
	"context"
	"fmt"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
	dm "github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// Generator eino ChatModel 中本包用到的部分
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Client 基于 OpenAI 兼容接口的分段分析客户端
type Client struct {
	chatModel Generator
	model     string
}

// NewClient 创建客户端
func NewClient(ctx context.Context, cfg config.LLMConfig) (*Client, error) {
	temperature := cfg.Temperature
	maxTokens := cfg.MaxTokens
	chatModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return New(chatModel, cfg.Model), nil
}

// New 使用已有的 ChatModel 创建客户端
func New(chatModel Generator, modelName string) *Client {
	return &Client{chatModel: chatModel, model: modelName}
}

// Model 返回模型名称
func (c *Client) Model() string {
	return c.model
}

// Complete 发送一个分段并返回模型原始输出
func (c *Client) Complete(ctx context.Context, seg dm.Segment) (string, error) {
	system, user := analyzer.Prompt(seg)
	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		if analyzer.IsRateLimited(err) {
			return "", fmt.Errorf("%w: %v", analyzer.ErrRateLimited, err)
		}
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", analyzer.ErrMalformedResponse)
	}
	return resp.Content, nil
}
