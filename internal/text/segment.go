// Package text prepares document text for speech: sentence segmentation,
// abbreviation expansion and reading time estimates.
package text

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxChunkBytes is the default upper bound on a chunk's UTF-8 size.
const DefaultMaxChunkBytes = 2048

// sentenceEnd matches a run of terminators and the whitespace after it.
var sentenceEnd = regexp.MustCompile(`[.!?]+\s+`)

// Span is a chunk of speakable text together with the byte range
// [Start, End) of the source it was cut from.
type Span struct {
	Text  string
	Start int
	End   int
}

// Split breaks text into chunks of at most maxBytes UTF-8 bytes.
// Sentences are packed greedily, joined by single spaces. Oversized
// sentences fall back to word packing, and oversized words are cut at
// rune boundaries. A single rune wider than maxBytes is kept whole.
func Split(text string, maxBytes int) []string {
	spans := SplitSpans(text, maxBytes)
	if len(spans) == 0 {
		return nil
	}
	chunks := make([]string, len(spans))
	for i, s := range spans {
		chunks[i] = s.Text
	}
	return chunks
}

// SplitSpans is Split but also reports where each chunk lies in text.
// Offsets are byte offsets, so a caller reading a file by position can
// advance exactly past the text it has spoken.
func SplitSpans(text string, maxBytes int) []Span {
	if maxBytes < 1 {
		maxBytes = DefaultMaxChunkBytes
	}

	p := &packer{max: maxBytes}
	for _, s := range sentences(text) {
		p.addSentence(s)
	}
	p.flush()
	return p.out
}

// LastBoundary returns the length of the longest prefix of text that ends
// after a sentence terminator and its trailing whitespace, or 0 when text
// contains no such break.
func LastBoundary(text string) int {
	ms := sentenceEnd.FindAllStringIndex(text, -1)
	if len(ms) == 0 {
		return 0
	}
	return ms[len(ms)-1][1]
}

// sentences splits text after each terminator run. The terminators stay
// with their sentence; the following whitespace is dropped.
func sentences(text string) []Span {
	var out []Span
	prev := 0
	for _, m := range sentenceEnd.FindAllStringIndex(text, -1) {
		end := m[0]
		for end < m[1] && strings.IndexByte(".!?", text[end]) >= 0 {
			end++
		}
		if s, ok := trimmed(text, prev, end); ok {
			out = append(out, s)
		}
		prev = m[1]
	}
	if s, ok := trimmed(text, prev, len(text)); ok {
		out = append(out, s)
	}
	return out
}

// words splits a span on Unicode whitespace, keeping source offsets.
func words(s Span) []Span {
	var out []Span
	start := -1
	for i, r := range s.Text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, Span{Text: s.Text[start:i], Start: s.Start + start, End: s.Start + i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, Span{Text: s.Text[start:], Start: s.Start + start, End: s.End})
	}
	return out
}

func trimmed(text string, start, end int) (Span, bool) {
	for start < end {
		r, size := utf8.DecodeRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		start += size
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	if start == end {
		return Span{}, false
	}
	return Span{Text: text[start:end], Start: start, End: end}, true
}

type packer struct {
	max int
	out []Span
	cur Span
	has bool
}

func (p *packer) fits(s Span) bool {
	if !p.has {
		return len(s.Text) <= p.max
	}
	return len(p.cur.Text)+1+len(s.Text) <= p.max
}

func (p *packer) push(s Span) {
	if !p.has {
		p.cur = s
		p.has = true
		return
	}
	p.cur.Text += " " + s.Text
	p.cur.End = s.End
}

func (p *packer) flush() {
	if p.has {
		p.out = append(p.out, p.cur)
		p.has = false
		p.cur = Span{}
	}
}

func (p *packer) addSentence(s Span) {
	if p.fits(s) {
		p.push(s)
		return
	}
	p.flush()
	if len(s.Text) <= p.max {
		p.push(s)
		return
	}
	for _, w := range words(s) {
		p.addWord(w)
	}
}

func (p *packer) addWord(w Span) {
	if p.fits(w) {
		p.push(w)
		return
	}
	p.flush()
	for len(w.Text) > p.max {
		n := prefixFit(w.Text, p.max)
		p.out = append(p.out, Span{Text: w.Text[:n], Start: w.Start, End: w.Start + n})
		w = Span{Text: w.Text[n:], Start: w.Start + n, End: w.End}
	}
	if w.Text != "" {
		p.push(w)
	}
}

// prefixFit returns the length of the longest prefix of s that is at most
// max bytes and ends on a rune boundary. len(s) must exceed max.
func prefixFit(s string, max int) int {
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	if n == 0 {
		_, n = utf8.DecodeRuneInString(s)
	}
	return n
}
