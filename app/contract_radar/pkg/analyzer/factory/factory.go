package factory

import (
	"context"
	"fmt"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer/gemini"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer/mock"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/analyzer/openai"
	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/config"
)

// NewClient 根据配置创建分析客户端
func NewClient(ctx context.Context, cfg config.LLMConfig) (analyzer.Client, error) {
	switch cfg.Provider {
	case "openai", "":
		return openai.NewClient(ctx, cfg)
	case "gemini":
		return gemini.NewClient(ctx, cfg)
	case "mock":
		return mock.New(), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
