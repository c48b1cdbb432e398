package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func para(n int, ch string) string {
	return strings.Repeat(ch, n)
}

// sentenceParagraph 生成 n 个 100 字符的句子，以空格分隔
func sentenceParagraph(n int) string {
	s := make([]string, n)
	for i := range s {
		s[i] = strings.Repeat("x", 99) + "."
	}
	return strings.Join(s, " ")
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func checkBounds(t *testing.T, texts []string, maxSize int) {
	t.Helper()
	for i, txt := range texts {
		if txt == "" {
			t.Errorf("segment %d is empty", i)
		}
		if txt != strings.TrimSpace(txt) {
			t.Errorf("segment %d is not trimmed", i)
		}
		if n := utf8.RuneCountInString(txt); n > maxSize {
			t.Errorf("segment %d has %d runes, max %d", i, n, maxSize)
		}
	}
}

func TestTexts_TwoParagraphsFitInOneSegment(t *testing.T) {
	p1 := para(1400, "a")
	p2 := para(1300, "b")
	got := New(DefaultOptions()).Texts(p1 + "\n\n" + p2)
	if len(got) != 1 {
		t.Fatalf("got %d segments, want 1", len(got))
	}
	if got[0] != p1+"\n\n"+p2 {
		t.Errorf("segment does not contain both paragraphs")
	}
}

func TestTexts_MergeThresholdIgnoresSeparator(t *testing.T) {
	tests := []struct {
		name string
		a, b int
		want int
	}{
		// 1500+1499 < 3000，合并后含空行共 3001 个字符
		{"just below max", 1500, 1499, 1},
		{"reaches max", 1500, 1500, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, p2 := para(tt.a, "a"), para(tt.b, "b")
			got := New(DefaultOptions()).Texts(p1 + "\n\n" + p2)
			if len(got) != tt.want {
				t.Fatalf("got %d segments, want %d", len(got), tt.want)
			}
			if tt.want == 1 && got[0] != p1+"\n\n"+p2 {
				t.Errorf("merged segment has %d runes", utf8.RuneCountInString(got[0]))
			}
		})
	}
}

func TestTexts_Empty(t *testing.T) {
	for _, drop := range []bool{false, true} {
		c := New(Options{MaxSize: 3000, MinSize: 1000, DropShortTail: drop})
		for _, in := range []string{"", "   ", "\n\n\n", " \r\n\r\n\t"} {
			if got := c.Texts(in); len(got) != 0 {
				t.Errorf("drop=%v Texts(%q) = %d segments, want 0", drop, in, len(got))
			}
		}
	}
}

func TestTexts_TrailingBufferPolicy(t *testing.T) {
	short := "This agreement is governed by the laws of Delaware."

	tests := []struct {
		name string
		drop bool
		text string
		want []string
	}{
		{
			name: "short text kept by default",
			text: short,
			want: []string{short},
		},
		{
			name: "short text dropped when DropShortTail",
			drop: true,
			text: short,
			want: nil,
		},
		{
			name: "short tail after full segment kept by default",
			text: para(1500, "a") + "\n\n" + para(1600, "b") + "\n\n" + para(1500, "c") + "\n\n" + short,
			want: []string{para(1500, "a"), para(1600, "b"), para(1500, "c") + "\n\n" + short},
		},
		{
			name: "tail reaching MinSize kept when DropShortTail",
			drop: true,
			text: para(1500, "a") + "\n\n" + para(1600, "b"),
			want: []string{para(1500, "a"), para(1600, "b")},
		},
		{
			name: "tail joined up to MinSize kept when DropShortTail",
			drop: true,
			text: para(2000, "a") + "\n\n" + para(1200, "b") + "\n\n" + para(500, "c"),
			want: []string{para(2000, "a"), para(1200, "b") + "\n\n" + para(500, "c")},
		},
		{
			name: "sub-MinSize final paragraph dropped when DropShortTail",
			drop: true,
			text: para(2500, "a") + "\n\n" + para(800, "b"),
			want: []string{para(2500, "a")},
		},
		{
			name: "sub-MinSize final paragraph kept by default",
			text: para(2500, "a") + "\n\n" + para(800, "b"),
			want: []string{para(2500, "a"), para(800, "b")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(Options{MaxSize: 3000, MinSize: 1000, DropShortTail: tt.drop})
			got := c.Texts(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d segments, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("segment %d = %.40q..., want %.40q...", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTexts_ShortBufferIsNotLost(t *testing.T) {
	// 500 字符的缓冲无法容纳 2900 字符的段落，单独输出
	text := para(500, "a") + "\n\n" + para(2900, "b")
	got := New(DefaultOptions()).Texts(text)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if got[0] != para(500, "a") || got[1] != para(2900, "b") {
		t.Errorf("unexpected segments")
	}
}

func TestTexts_OversizedParagraphSplitsBySentence(t *testing.T) {
	p := sentenceParagraph(40)
	got := New(DefaultOptions()).Texts(p)
	checkBounds(t, got, 3000)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if n := utf8.RuneCountInString(got[0]); n != 2928 {
		t.Errorf("first segment = %d runes, want 2928", n)
	}
	if n := utf8.RuneCountInString(got[1]); n != 1110 {
		t.Errorf("second segment = %d runes, want 1110", n)
	}
	if squash(strings.Join(got, " ")) != squash(p) {
		t.Error("content lost while packing sentences")
	}
}

func TestTexts_SentenceTailSeedsNextBuffer(t *testing.T) {
	p := sentenceParagraph(35)
	tail := "Signed by both parties."
	got := New(DefaultOptions()).Texts(p + "\n\n" + tail)
	checkBounds(t, got, 3000)
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if !strings.HasSuffix(got[1], "\n\n"+tail) {
		t.Errorf("tail paragraph not joined to the sentence remainder: %q", got[1][len(got[1])-40:])
	}
	if squash(strings.Join(got, " ")) != squash(p+tail) {
		t.Error("content lost")
	}
}

func TestTexts_ShortBufferSeedsSentencePacking(t *testing.T) {
	intro := "Definitions apply to the whole agreement."
	p := sentenceParagraph(35)
	got := New(DefaultOptions()).Texts(intro + "\n\n" + p)
	checkBounds(t, got, 3000)
	if len(got) == 0 || !strings.HasPrefix(got[0], intro+"\n\nxxx") {
		t.Fatalf("short buffer should open the first sentence pack")
	}
	if squash(strings.Join(got, " ")) != squash(intro+p) {
		t.Error("content lost")
	}
}

func TestTexts_UnterminatedRemainderIsKept(t *testing.T) {
	p := sentenceParagraph(31) + " and the remainder has no full stop"
	got := New(DefaultOptions()).Texts(p)
	checkBounds(t, got, 3000)
	joined := strings.Join(got, " ")
	if !strings.HasSuffix(joined, "no full stop") {
		t.Errorf("unterminated remainder dropped")
	}
	if squash(joined) != squash(p) {
		t.Error("content lost")
	}
}

func TestTexts_HardWrapWithoutBoundaries(t *testing.T) {
	p := para(7000, "z")
	got := New(DefaultOptions()).Texts(p)
	checkBounds(t, got, 3000)
	if len(got) != 3 {
		t.Fatalf("got %d segments, want 3", len(got))
	}
	if strings.Join(got, "") != p {
		t.Error("content lost")
	}
}

func TestTexts_HardWrapPrefersWhitespace(t *testing.T) {
	words := strings.Repeat("word ", 1000) // 5000 runes, no sentence end
	got := New(DefaultOptions()).Texts(words)
	checkBounds(t, got, 3000)
	for i, s := range got {
		if strings.Contains(" "+s+" ", " wo ") || strings.HasSuffix(s, "wor") {
			t.Errorf("segment %d cut inside a word", i)
		}
	}
	if squash(strings.Join(got, "")) != squash(words) {
		t.Error("content lost")
	}
}

func TestTexts_CountsRunes(t *testing.T) {
	// 2900 个汉字超过 3000 字节但不超过 3000 rune
	p := para(2900, "合")
	got := New(DefaultOptions()).Texts(p)
	if len(got) != 1 || got[0] != p {
		t.Fatalf("got %d segments, want the paragraph intact", len(got))
	}

	got = New(DefaultOptions()).Texts(para(2000, "甲") + "\n\n" + para(2000, "乙"))
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
}

func TestTexts_NormalisesCRLF(t *testing.T) {
	got := New(DefaultOptions()).Texts("first clause\r\n\r\nsecond clause\r\n")
	if len(got) != 1 || got[0] != "first clause\n\nsecond clause" {
		t.Errorf("got %q", got)
	}
}

func TestSplit_IndexAndTotal(t *testing.T) {
	text := para(1500, "a") + "\n\n" + para(1600, "b") + "\n\n" + para(1700, "c")
	c := New(DefaultOptions())
	segs := c.Split(text)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	for i, s := range segs {
		if s.Index != i || s.Total != 3 {
			t.Errorf("segment %d: Index=%d Total=%d", i, s.Index, s.Total)
		}
	}

	again := c.Split(text)
	for i := range segs {
		if segs[i] != again[i] {
			t.Errorf("Split is not deterministic at %d", i)
		}
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	c := New(Options{MaxSize: 0, MinSize: -5})
	if got := c.Options(); got.MaxSize != 3000 || got.MinSize != 1000 {
		t.Errorf("options = %+v", got)
	}
	c = New(Options{MaxSize: 500, MinSize: 800})
	if got := c.Options(); got.MaxSize != 500 || got.MinSize != 500 {
		t.Errorf("options = %+v", got)
	}
}
