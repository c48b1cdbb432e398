package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// 正文短于该长度时认为 readability 没有识别出正文，回退为全文提取
const minArticleLength = 200

var blankLines = regexp.MustCompile(`\n\s*\n`)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"section": true, "article": true, "blockquote": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// extractHTML 优先用 readability 提取正文，正文过短时使用全部可见文本
func extractHTML(_ context.Context, data []byte) (string, error) {
	visible, err := visibleText(data)
	if err != nil {
		return "", fmt.Errorf("%w: html parse: %v", ErrExtraction, err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err == nil {
		text := normalizeParagraphs(article.TextContent)
		if len([]rune(text)) >= minArticleLength || len(text) >= len(visible) {
			return text, nil
		}
	}
	return visible, nil
}

// visibleText 遍历节点提取可见文本，跳过 script/style，块级元素之间保留空行
func visibleText(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n\n")
		}
	}
	walk(doc)
	return normalizeParagraphs(sb.String()), nil
}

// normalizeParagraphs 段内空白折叠为单个空格，段落之间以一个空行分隔
func normalizeParagraphs(s string) string {
	var paras []string
	for _, p := range blankLines.Split(s, -1) {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			paras = append(paras, p)
		}
	}
	return strings.Join(paras, "\n\n")
}
