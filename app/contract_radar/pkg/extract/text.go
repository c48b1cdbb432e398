package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// extractText 纯文本和 Markdown，去掉 BOM 和首尾空白
func extractText(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return strings.TrimSpace(string(data)), nil
}

// extractCSV 每行输出为 "Row i:" 加 "列名: 值"，行之间空行分隔
func extractCSV(ctx context.Context, data []byte) (string, error) {
	text, _ := extractText(ctx, data)
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headers, err := r.Read()
	if err == io.EOF {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: csv header: %v", ErrExtraction, err)
	}

	var rows []string
	for i := 1; ; i++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: csv row %d: %v", ErrExtraction, i, err)
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Row %d:", i)
		for j, h := range headers {
			v := ""
			if j < len(record) {
				v = strings.TrimSpace(record[j])
			}
			fmt.Fprintf(&sb, "\n%s: %s", strings.TrimSpace(h), v)
		}
		rows = append(rows, sb.String())
	}
	return strings.Join(rows, "\n\n"), nil
}

// extractJSON 展开嵌套对象为 "a.b.c: 值" 行，数组以 ", " 连接
func extractJSON(_ context.Context, data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("%w: invalid JSON file format: %v", ErrExtraction, err)
	}

	var lines []string
	flatten("", v, &lines)
	return strings.Join(lines, "\n"), nil
}

func flatten(prefix string, v any, lines *[]string) {
	obj, ok := v.(map[string]any)
	if !ok {
		key := prefix
		if key == "" {
			key = "value"
		}
		*lines = append(*lines, fmt.Sprintf("%s: %s", key, scalar(v)))
		return
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		flatten(key, obj[k], lines)
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = scalar(e)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	}
	return fmt.Sprint(v)
}
