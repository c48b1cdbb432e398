package merge

import (
	"fmt"
	"strings"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

const unknownError = "Unknown error"

// absentKey 缺少去重字段的条目共用同一个键
const absentKey = "\x00absent"

// Combine 按顺序合并各分段的分析结果：平均分、发现列表拼接去重、失败分段与原始输出
func Combine(records []model.AnalysisRecord) *model.CombinedReport {
	report := model.NewCombinedReport()

	var (
		totalScore    int
		validCount    int
		hasRawContent bool
		blocks        []string
	)

	for i, rec := range records {
		if rec.Error {
			segIndex := i
			if rec.ChunkIndex != nil {
				segIndex = *rec.ChunkIndex
			}
			msg := rec.Message
			if msg == "" {
				msg = unknownError
			}
			report.Errors = append(report.Errors, model.SegmentError{SegmentIndex: segIndex, Message: msg})

			if rec.Content != "" {
				blocks = append(blocks, fmt.Sprintf("--- Segment %d (raw output) ---\n\n%s", i+1, rec.Content))
				hasRawContent = true
			}
			continue
		}

		totalScore += rec.OverallScore
		validCount++

		for _, c := range model.Categories {
			report.SetFindings(c, append(report.Findings(c), rec.Findings(c)...))
		}

		if rec.Content != "" {
			blocks = append(blocks, fmt.Sprintf("--- Segment %d ---\n\n%s", i+1, rec.Content))
			hasRawContent = true
		}
	}

	if validCount > 0 {
		report.OverallScore = roundDiv(totalScore, validCount)
	}

	for _, c := range model.Categories {
		report.SetFindings(c, Dedupe(report.Findings(c), c.KeyField))
	}

	report.Content = strings.Join(blocks, "\n\n")
	if hasRawContent && !report.HasFindings() {
		report.GeneratedText = report.Content
	}
	return report
}

// Dedupe 按 keyField 去重，保留首次出现的条目，丢弃非对象条目
func Dedupe(list []model.Finding, keyField string) []model.Finding {
	seen := make(map[string]struct{}, len(list))
	out := make([]model.Finding, 0, len(list))
	for _, f := range list {
		if !f.IsObject() {
			continue
		}
		key, ok := f.KeyValue(keyField)
		if !ok {
			key = absentKey
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// roundDiv 四舍五入的整数除法（半数向上），分母为正
func roundDiv(total, n int) int {
	if total >= 0 {
		return (2*total + n) / (2 * n)
	}
	return -((-2*total + n - 1) / (2 * n))
}
