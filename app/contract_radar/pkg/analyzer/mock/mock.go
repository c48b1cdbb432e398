// Package mock 提供离线可用的确定性分析客户端，用于测试和本地演示
package mock

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"strings"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

// Client 根据分段内容生成确定性的分析结果
type Client struct{}

// New 创建 mock 客户端
func New() *Client {
	return &Client{}
}

// Model 返回模型名称
func (c *Client) Model() string {
	return "mock"
}

var keywords = []struct {
	word     string
	category string
	entry    map[string]any
}{
	{"terminat", "criticalPoints", map[string]any{"title": "Termination rights", "description": "The segment contains termination language."}},
	{"indemn", "criticalPoints", map[string]any{"title": "Indemnification", "description": "Indemnity obligations are present."}},
	{"penalt", "financialRisks", map[string]any{"title": "Penalty clause", "description": "Penalties may apply."}},
	{"interest", "financialRisks", map[string]any{"title": "Interest charges", "description": "Interest accrues on late amounts."}},
	{"notwithstanding", "unusualLanguage", map[string]any{"text": "notwithstanding", "explanation": "Overrides other provisions."}},
	{"sole discretion", "unusualLanguage", map[string]any{"text": "sole discretion", "explanation": "One-sided decision power."}},
}

// Complete 返回 JSON 格式的分析结果
func (c *Client) Complete(ctx context.Context, seg model.Segment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	result := map[string]any{
		"criticalPoints":  []any{},
		"financialRisks":  []any{},
		"unusualLanguage": []any{},
		"recommendations": []any{},
	}
	lower := strings.ToLower(seg.Text)
	hits := 0
	for _, k := range keywords {
		if strings.Contains(lower, k.word) {
			result[k.category] = append(result[k.category].([]any), k.entry)
			hits++
		}
	}
	if hits > 0 {
		result["recommendations"] = []any{map[string]any{"text": "Have counsel review the flagged clauses."}}
	}

	h := fnv.New32a()
	h.Write([]byte(seg.Text))
	result["overallScore"] = min(100, 40+hits*10+int(h.Sum32()%10))

	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
