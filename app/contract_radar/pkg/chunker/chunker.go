package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iWorld-y/contract_radar/app/contract_radar/pkg/model"
)

var (
	paragraphBreak = regexp.MustCompile(`\n[ \t]*\n\s*`)
	// 以 . ! ? 结尾的句子，末尾没有标点的残句也会被匹配到
	sentencePattern = regexp.MustCompile(`[.!?]*[^.!?]+[.!?]*`)
)

// Options 分段参数，长度单位为 rune
type Options struct {
	MaxSize int
	MinSize int
	// DropShortTail 为 true 时丢弃不足 MinSize 的末尾缓冲
	DropShortTail bool
}

// DefaultOptions 默认分段参数
func DefaultOptions() Options {
	return Options{MaxSize: 3000, MinSize: 1000}
}

// Chunker 将长文本切分为有界大小的分段，优先在段落和句子边界处切分
type Chunker struct {
	opts Options
}

// New 创建分段器，非法参数回退为默认值
func New(opts Options) *Chunker {
	def := DefaultOptions()
	if opts.MaxSize <= 0 {
		opts.MaxSize = def.MaxSize
	}
	if opts.MinSize < 0 || opts.MinSize > opts.MaxSize {
		opts.MinSize = min(def.MinSize, opts.MaxSize)
	}
	return &Chunker{opts: opts}
}

// Options 返回生效的分段参数
func (c *Chunker) Options() Options {
	return c.opts
}

// Split 切分文本并返回带序号的分段
func (c *Chunker) Split(text string) []model.Segment {
	texts := c.Texts(text)
	segs := make([]model.Segment, len(texts))
	for i, t := range texts {
		segs[i] = model.Segment{Text: t, Index: i, Total: len(texts)}
	}
	return segs
}

// Texts 切分文本，返回各分段内容
func (c *Chunker) Texts(text string) []string {
	s := &state{opts: c.opts}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, raw := range paragraphBreak.Split(text, -1) {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		s.addParagraph(p)
	}

	if s.buf != "" && (!c.opts.DropShortTail || runeLen(s.buf) >= c.opts.MinSize) {
		s.emit(s.buf)
	}
	return s.out
}

type state struct {
	opts Options
	buf  string
	out  []string
}

func (s *state) emit(text string) {
	text = strings.TrimSpace(text)
	if text != "" {
		s.out = append(s.out, text)
	}
}

// addParagraph 合并判断只比较缓冲与段落本身的长度之和，不计连接用的空行，
// 因此合并后的分段最多比 MaxSize 多出两个换行符
func (s *state) addParagraph(p string) {
	if s.buf == "" || runeLen(s.buf)+runeLen(p) < s.opts.MaxSize {
		if s.buf == "" && runeLen(p) > s.opts.MaxSize {
			s.packSentences(p)
			return
		}
		s.buf = joinParagraphs(s.buf, p)
		return
	}

	if runeLen(s.buf) >= s.opts.MinSize {
		s.emit(s.buf)
		s.buf = ""
	}

	if runeLen(p) > s.opts.MaxSize {
		s.packSentences(p)
		return
	}

	// 短缓冲无法容纳当前段落时单独输出，不丢弃
	if s.buf != "" {
		s.emit(s.buf)
	}
	s.buf = p
}

// packSentences 将超长段落按句子贪心装箱，起点为尚未输出的短缓冲。
// 最后一箱不足 MinSize 时留作下一轮缓冲。
func (s *state) packSentences(p string) {
	pack := s.buf
	sep := ""
	if pack != "" {
		sep = "\n\n"
	}
	s.buf = ""

	for _, sentence := range sentences(p) {
		for _, piece := range hardWrap(sentence, s.opts.MaxSize) {
			if pack == "" {
				pack = strings.TrimLeftFunc(piece, unicode.IsSpace)
				sep = ""
				continue
			}
			if sep != "" {
				piece = strings.TrimLeftFunc(piece, unicode.IsSpace)
			}
			if runeLen(pack)+len(sep)+runeLen(piece) <= s.opts.MaxSize {
				pack += sep + piece
				sep = ""
				continue
			}
			s.emit(pack)
			pack = strings.TrimLeftFunc(piece, unicode.IsSpace)
			sep = ""
		}
	}

	if runeLen(pack) >= s.opts.MinSize {
		s.emit(pack)
		return
	}
	s.buf = strings.TrimSpace(pack)
}

func sentences(p string) []string {
	found := sentencePattern.FindAllString(p, -1)
	if len(found) == 0 {
		return []string{p}
	}
	return found
}

// hardWrap 将超过 limit 的句子在空白处折行，找不到空白时按 rune 截断
func hardWrap(s string, limit int) []string {
	var pieces []string
	for runeLen(s) > limit {
		r := []rune(s)
		cut := limit
		for i := limit; i > 0; i-- {
			if unicode.IsSpace(r[i]) {
				cut = i
				break
			}
		}
		pieces = append(pieces, string(r[:cut]))
		s = string(r[cut:])
	}
	if s != "" {
		pieces = append(pieces, s)
	}
	return pieces
}

func joinParagraphs(buf, p string) string {
	if buf == "" {
		return p
	}
	return buf + "\n\n" + p
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
