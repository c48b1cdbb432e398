package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

var (
	// ErrMalformedResponse 模型输出无法解析为分析结果
	ErrMalformedResponse = errors.New("malformed analysis response")
	// ErrRateLimited 模型服务限流
	ErrRateLimited = errors.New("rate limited")
)

// Client 分段分析客户端：输入一个分段，返回模型的原始输出
type Client interface {
	Complete(ctx context.Context, seg model.Segment) (string, error)
	Model() string
}

const systemPrompt = `You are an experienced legal analyst for a harvard attorney. Provide structured legal analysis of this contract text (chunk %d of %d).`

const userPrompt = `Analyze the following legal text for:
1. Critical legal points
2. Financial risks
3. Unusual language
4. Actionable recommendations

Respond only with JSON in this format, without markdown:
{
  "overallScore": number from 0 to 100,
  "criticalPoints": [{"title": "...", "description": "..."}],
  "financialRisks": [{"title": "...", "description": "..."}],
  "unusualLanguage": [{"text": "...", "explanation": "..."}],
  "recommendations": [{"text": "..."}]
}

Text:
%s`

// Prompt 构造分段的系统提示词和用户提示词
func Prompt(seg model.Segment) (system, user string) {
	return fmt.Sprintf(systemPrompt, seg.Index+1, seg.Total), fmt.Sprintf(userPrompt, seg.Text)
}

// wireRecord 用于校验必需字段是否存在
type wireRecord struct {
	OverallScore    *float64         `json:"overallScore"`
	CriticalPoints  *[]model.Finding `json:"criticalPoints"`
	FinancialRisks  *[]model.Finding `json:"financialRisks"`
	UnusualLanguage *[]model.Finding `json:"unusualLanguage"`
	Recommendations *[]model.Finding `json:"recommendations"`
	Content         *string          `json:"content"`
}

// Parse 解析模型输出。缺少分数或任一发现列表都视为格式错误
func Parse(raw string) (*model.AnalysisRecord, error) {
	clean := stripFences(raw)
	if start, end := strings.Index(clean, "{"), strings.LastIndex(clean, "}"); start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	var w wireRecord
	if err := json.Unmarshal([]byte(clean), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var missing []string
	if w.OverallScore == nil {
		missing = append(missing, "overallScore")
	}
	if w.CriticalPoints == nil {
		missing = append(missing, "criticalPoints")
	}
	if w.FinancialRisks == nil {
		missing = append(missing, "financialRisks")
	}
	if w.UnusualLanguage == nil {
		missing = append(missing, "unusualLanguage")
	}
	if w.Recommendations == nil {
		missing = append(missing, "recommendations")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}

	rec := &model.AnalysisRecord{
		OverallScore:    clampScore(*w.OverallScore),
		CriticalPoints:  *w.CriticalPoints,
		FinancialRisks:  *w.FinancialRisks,
		UnusualLanguage: *w.UnusualLanguage,
		Recommendations: *w.Recommendations,
	}
	if w.Content != nil {
		rec.Content = *w.Content
	}
	return rec, nil
}

// IsRateLimited 判断错误是否为限流
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v + 0.5)
}
