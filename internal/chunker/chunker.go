// Package chunker splits document text into bounded, overlapping segments.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxSize is the default maximum chunk length in characters.
const DefaultMaxSize = 800

// DefaultOverlap is the default overlap budget in characters; the seed
// carried into the next chunk is overlap/10 words.
const DefaultOverlap = 100

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

// Chunker splits text on paragraph boundaries first, falling back to line
// and word boundaries for paragraphs that alone exceed the chunk limit and
// to hard slicing for single words longer than it.
type Chunker struct {
	maxSize int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxSize sets the maximum chunk size in characters.
func WithMaxSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithOverlap sets the overlap budget in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxSize: DefaultMaxSize,
		overlap: DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.maxSize {
		c.overlap = c.maxSize / 4
	}
	return c
}

// Split chunks text into ordered segments, each at most maxSize characters.
// Paragraphs are the primary unit: a paragraph that fits is never cut, and a
// chunk that cannot take the next whole paragraph closes at the paragraph
// boundary. Only paragraphs larger than maxSize fall back to line and word
// splitting. When a chunk closes, the next one is seeded with the trailing
// overlap/10 words of the previous chunk so boundary-spanning facts stay
// searchable. Hard word splits intentionally carry no overlap.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s := &splitter{maxSize: c.maxSize, seedWords: c.overlap / 10}
	for _, para := range paragraphSep.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		s.paragraph(para)
	}
	s.flush(false)
	return s.chunks
}

// MaxSize returns the configured chunk size limit.
func (c *Chunker) MaxSize() int { return c.maxSize }

// Overlap returns the configured overlap budget.
func (c *Chunker) Overlap() int { return c.overlap }

// splitter accumulates one chunk at a time. Segments keep their source
// separators inside a chunk: paragraphs are joined by blank lines and lines
// by newlines, so markdown structure (tables, lists) survives chunking.
type splitter struct {
	maxSize   int
	seedWords int
	chunks    []string
	cur       string
}

func (s *splitter) paragraph(para string) {
	if len(para) > s.maxSize {
		s.oversized(para)
		return
	}
	if !s.fits("\n\n", para) {
		s.flush(true)
		s.makeRoom("\n\n", para)
	}
	s.append("\n\n", para)
}

// oversized splits a too-large paragraph on its lines, and on words for
// lines that are themselves too large.
func (s *splitter) oversized(para string) {
	for _, line := range strings.Split(para, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > s.maxSize {
			s.words(line)
			continue
		}
		if !s.fits("\n", line) {
			s.flush(true)
			s.makeRoom("\n", line)
		}
		s.append("\n", line)
	}
}

func (s *splitter) words(line string) {
	for _, w := range strings.Fields(line) {
		if len(w) > s.maxSize {
			// A single token longer than the limit: close the current
			// chunk without overlap and emit rune-boundary slices.
			s.flush(false)
			slices := runeSlices(w, s.maxSize)
			s.chunks = append(s.chunks, slices[:len(slices)-1]...)
			s.cur = slices[len(slices)-1]
			continue
		}
		if !s.fits(" ", w) {
			s.flush(true)
			s.makeRoom(" ", w)
		}
		s.append(" ", w)
	}
}

func (s *splitter) fits(sep, segment string) bool {
	if s.cur == "" {
		return len(segment) <= s.maxSize
	}
	return len(s.cur)+len(sep)+len(segment) <= s.maxSize
}

func (s *splitter) append(sep, segment string) {
	if s.cur == "" {
		s.cur = segment
		return
	}
	s.cur += sep + segment
}

// flush closes the current chunk; when seed is true the trailing words are
// carried over as the start of the next chunk.
func (s *splitter) flush(seed bool) {
	if s.cur == "" {
		return
	}
	s.chunks = append(s.chunks, s.cur)
	if seed && s.seedWords > 0 {
		words := strings.Fields(s.cur)
		if len(words) > s.seedWords {
			words = words[len(words)-s.seedWords:]
		}
		s.cur = strings.Join(words, " ")
	} else {
		s.cur = ""
	}
}

// makeRoom drops seed words from the front until the incoming segment fits.
func (s *splitter) makeRoom(sep, segment string) {
	for s.cur != "" && !s.fits(sep, segment) {
		words := strings.Fields(s.cur)
		if len(words) <= 1 {
			s.cur = ""
			return
		}
		s.cur = strings.Join(words[1:], " ")
	}
}

// runeSlices cuts w into pieces of at most max bytes each, never splitting
// a UTF-8 sequence.
func runeSlices(w string, max int) []string {
	var out []string
	start := 0
	for i, r := range w {
		if i-start+utf8.RuneLen(r) > max {
			out = append(out, w[start:i])
			start = i
		}
	}
	out = append(out, w[start:])
	return out
}
