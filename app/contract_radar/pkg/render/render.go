// Package render 将合并报告渲染为面向律师的文本和 HTML
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

type section struct {
	Title    string
	Category model.Category
}

var sections = []section{
	{"Critical Legal Points", model.CriticalPoints},
	{"Financial Risks", model.FinancialRisks},
	{"Unusual or Non-standard Language", model.UnusualLanguage},
	{"Recommendations", model.Recommendations},
}

const noContent = "(no content available)"

// label 优先使用类别的去重字段
func label(c model.Category, f model.Finding) string {
	if s, ok := f.Fields[c.KeyField].(string); ok && s != "" {
		return s
	}
	return f.Label()
}

func fallbackText(r *model.CombinedReport) string {
	switch {
	case r.GeneratedText != "":
		return r.GeneratedText
	case r.Content != "":
		return r.Content
	}
	return noContent
}

// Text 渲染为 Markdown 风格的叙述性报告
func Text(r *model.CombinedReport, fileName string) string {
	var sb strings.Builder

	sb.WriteString("Legal Document Analysis Report")
	if fileName != "" {
		fmt.Fprintf(&sb, ": *%s*", fileName)
	}
	sb.WriteString("\n\n---\n\n")
	fmt.Fprintf(&sb, "**Overall Score**: %d/100\n\n", r.OverallScore)

	for _, s := range sections {
		list := r.Findings(s.Category)
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "**%s**:\n", s.Title)
		for _, f := range list {
			fmt.Fprintf(&sb, "- %s\n", label(s.Category, f))
		}
		sb.WriteString("\n")
	}

	if !r.HasFindings() {
		sb.WriteString("No structured findings were extracted.\n")
		sb.WriteString("\nRaw analysis output:\n\n")
		sb.WriteString(fallbackText(r))
		sb.WriteString("\n")
	}

	if len(r.Errors) > 0 {
		sb.WriteString("\n**Segments that could not be analyzed**:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "- Segment %d: %s\n", e.SegmentIndex+1, e.Message)
		}
	}

	return strings.TrimSpace(sb.String())
}

// HTMLData 用于模板渲染的数据
type HTMLData struct {
	FileName    string
	Date        string
	Score       int
	Sections    []HTMLSection
	HasFindings bool
	Fallback    string
	Errors      []model.SegmentError
}

// HTMLSection 一个类别的展示数据
type HTMLSection struct {
	Title string
	Items []string
}

var htmlTpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Contract Radar | {{.FileName}}</title>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; color: #1e293b; max-width: 860px; margin: 0 auto; padding: 20px; }
        .score { font-size: 2rem; font-weight: bold; color: #2563eb; }
        section { border: 1px solid #e2e8f0; border-radius: 8px; padding: 12px 20px; margin: 16px 0; }
        pre { white-space: pre-wrap; background: #f8fafc; padding: 12px; }
        .errors { color: #b91c1c; }
    </style>
</head>
<body>
    <h1>Legal Document Analysis Report{{if .FileName}}: {{.FileName}}{{end}}</h1>
    <p>{{.Date}}</p>
    <p class="score">Overall Score: {{.Score}}/100</p>
    {{range .Sections}}
    <section>
        <h2>{{.Title}}</h2>
        <ul>{{range .Items}}
            <li>{{.}}</li>{{end}}
        </ul>
    </section>
    {{end}}
    {{if not .HasFindings}}
    <section>
        <h2>No structured findings were extracted</h2>
        <pre>{{.Fallback}}</pre>
    </section>
    {{end}}
    {{if .Errors}}
    <section class="errors">
        <h2>Segments that could not be analyzed</h2>
        <ul>{{range .Errors}}
            <li>Segment {{inc .SegmentIndex}}: {{.Message}}</li>{{end}}
        </ul>
    </section>
    {{end}}
</body>
</html>
`))

// HTML 渲染为 HTML 页面
func HTML(r *model.CombinedReport, fileName string) (string, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, r, fileName); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteHTML 将 HTML 报告写入 w
func WriteHTML(w io.Writer, r *model.CombinedReport, fileName string) error {
	data := HTMLData{
		FileName:    fileName,
		Date:        time.Now().Format(time.DateOnly),
		Score:       r.OverallScore,
		HasFindings: r.HasFindings(),
		Fallback:    fallbackText(r),
		Errors:      r.Errors,
	}
	for _, s := range sections {
		list := r.Findings(s.Category)
		if len(list) == 0 {
			continue
		}
		items := make([]string, len(list))
		for i, f := range list {
			items[i] = label(s.Category, f)
		}
		data.Sections = append(data.Sections, HTMLSection{Title: s.Title, Items: items})
	}
	return htmlTpl.Execute(w, data)
}
