package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Segment 文档分段，分析的最小单元
type Segment struct {
	Text  string // 分段文本，非空
	Index int    // 分段序号，从 0 开始
	Total int    // 分段总数
}

// Category 发现类别，KeyField 为该类别的去重键
type Category struct {
	Name     string
	KeyField string
}

var (
	CriticalPoints  = Category{Name: "criticalPoints", KeyField: "title"}
	FinancialRisks  = Category{Name: "financialRisks", KeyField: "title"}
	UnusualLanguage = Category{Name: "unusualLanguage", KeyField: "text"}
	Recommendations = Category{Name: "recommendations", KeyField: "text"}
)

// Categories 固定顺序的四个类别
var Categories = []Category{CriticalPoints, FinancialRisks, UnusualLanguage, Recommendations}

// AnalysisRecord 单个分段的分析结果（成功或失败）
type AnalysisRecord struct {
	OverallScore    int       `json:"overallScore"`
	CriticalPoints  []Finding `json:"criticalPoints"`
	FinancialRisks  []Finding `json:"financialRisks"`
	UnusualLanguage []Finding `json:"unusualLanguage"`
	Recommendations []Finding `json:"recommendations"`
	Content         string    `json:"content,omitempty"` // 原始输出（兜底文本）
	Error           bool      `json:"error,omitempty"`
	Message         string    `json:"message,omitempty"`
	ChunkIndex      *int      `json:"chunkIndex,omitempty"`
}

// NewErrorRecord 构造失败分段的替代记录
func NewErrorRecord(index int, message, content string) AnalysisRecord {
	idx := index
	return AnalysisRecord{
		Error:      true,
		Message:    message,
		ChunkIndex: &idx,
		Content:    content,
	}
}

// Findings 返回指定类别的发现列表
func (r *AnalysisRecord) Findings(c Category) []Finding {
	switch c.Name {
	case CriticalPoints.Name:
		return r.CriticalPoints
	case FinancialRisks.Name:
		return r.FinancialRisks
	case UnusualLanguage.Name:
		return r.UnusualLanguage
	case Recommendations.Name:
		return r.Recommendations
	}
	return nil
}

// SetFindings 设置指定类别的发现列表
func (r *AnalysisRecord) SetFindings(c Category, list []Finding) {
	switch c.Name {
	case CriticalPoints.Name:
		r.CriticalPoints = list
	case FinancialRisks.Name:
		r.FinancialRisks = list
	case UnusualLanguage.Name:
		r.UnusualLanguage = list
	case Recommendations.Name:
		r.Recommendations = list
	}
}

// SegmentError 合并报告中的失败分段
type SegmentError struct {
	SegmentIndex int    `json:"segmentIndex"`
	Message      string `json:"message"`
}

// CombinedReport 合并后的最终报告
type CombinedReport struct {
	OverallScore    int            `json:"overallScore"`
	CriticalPoints  []Finding      `json:"criticalPoints"`
	FinancialRisks  []Finding      `json:"financialRisks"`
	UnusualLanguage []Finding      `json:"unusualLanguage"`
	Recommendations []Finding      `json:"recommendations"`
	Errors          []SegmentError `json:"errors"`
	Content         string         `json:"content,omitempty"`
	GeneratedText   string         `json:"generatedText,omitempty"` // 仅在没有任何结构化发现时等于 Content
}

// NewCombinedReport 返回列表均已初始化的空报告，序列化为 [] 而不是 null
func NewCombinedReport() *CombinedReport {
	return &CombinedReport{
		CriticalPoints:  []Finding{},
		FinancialRisks:  []Finding{},
		UnusualLanguage: []Finding{},
		Recommendations: []Finding{},
		Errors:          []SegmentError{},
	}
}

// Findings 返回指定类别的发现列表
func (r *CombinedReport) Findings(c Category) []Finding {
	switch c.Name {
	case CriticalPoints.Name:
		return r.CriticalPoints
	case FinancialRisks.Name:
		return r.FinancialRisks
	case UnusualLanguage.Name:
		return r.UnusualLanguage
	case Recommendations.Name:
		return r.Recommendations
	}
	return nil
}

// SetFindings 设置指定类别的发现列表
func (r *CombinedReport) SetFindings(c Category, list []Finding) {
	if list == nil {
		list = []Finding{}
	}
	switch c.Name {
	case CriticalPoints.Name:
		r.CriticalPoints = list
	case FinancialRisks.Name:
		r.FinancialRisks = list
	case UnusualLanguage.Name:
		r.UnusualLanguage = list
	case Recommendations.Name:
		r.Recommendations = list
	}
}

// HasFindings 是否存在任意结构化发现
func (r *CombinedReport) HasFindings() bool {
	for _, c := range Categories {
		if len(r.Findings(c)) > 0 {
			return true
		}
	}
	return false
}

// AnalysisResult 一次文档分析的完整结果，交给存储、归档、邮件等下游
type AnalysisResult struct {
	ID           string          `json:"id"`
	FileName     string          `json:"fileName"`
	MIMEType     string          `json:"mimeType"`
	SegmentCount int             `json:"segmentCount"`
	CreatedAt    time.Time       `json:"createdAt"`
	Report       *CombinedReport `json:"analysis"`
}

// Finding 单条发现。对象条目保留全部字段，非对象条目 Fields 为 nil，仅保留原始 JSON
type Finding struct {
	Fields map[string]any
	Raw    json.RawMessage
}

// NewFinding 由字段构造对象条目
func NewFinding(fields map[string]any) Finding {
	raw, _ := json.Marshal(fields)
	return Finding{Fields: fields, Raw: raw}
}

// IsObject 是否为 JSON 对象条目
func (f Finding) IsObject() bool {
	return f.Fields != nil
}

// KeyValue 返回指定字段值的规范 JSON 表示，以及该字段是否存在。
// 使用 JSON 表示区分 "5" 与 5 这类不同类型的同形值。
func (f Finding) KeyValue(field string) (string, bool) {
	if f.Fields == nil {
		return "", false
	}
	v, ok := f.Fields[field]
	if !ok {
		return "", false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Label 展示用文本：title 优先，其次 text，最后是原始 JSON
func (f Finding) Label() string {
	for _, field := range []string{"title", "text"} {
		if s, ok := f.Fields[field].(string); ok && s != "" {
			return s
		}
	}
	var s string
	if err := json.Unmarshal(f.Raw, &s); err == nil {
		return s
	}
	return string(f.Raw)
}

// MarshalJSON 实现 json.Marshaler
func (f Finding) MarshalJSON() ([]byte, error) {
	if f.Fields != nil {
		return json.Marshal(f.Fields)
	}
	if len(f.Raw) == 0 {
		return []byte("null"), nil
	}
	return f.Raw, nil
}

// UnmarshalJSON 实现 json.Unmarshaler
func (f *Finding) UnmarshalJSON(data []byte) error {
	f.Raw = append(json.RawMessage(nil), data...)
	f.Fields = nil
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}
	f.Fields = fields
	return nil
}
