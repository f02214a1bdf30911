// Package segment turns cleaned page text into overlapping retrieval chunks.
//
// Two strategies cooperate: when a SectionDetector finds headings, chunks
// follow section boundaries and inherit the heading; otherwise a sliding
// window with natural break points covers the whole text. Fragments shorter
// than 50 characters are dropped, and a trailing fragment shorter than the
// minimum is merged into the chunk before it.
package segment

import (
	"strings"

	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/schema"
)

const (
	// minDocChars is the minimum cleaned-text length worth segmenting.
	minDocChars = 50
	// minChunkChars drops boilerplate fragments after trimming.
	minChunkChars = 50
	// breakThreshold is how far into the window a break point must fall
	// to be accepted, as a fraction of the window size.
	breakThreshold = 0.7
)

// breakPoints are tried in priority order when snapping a window edge to a
// natural boundary.
var breakPoints = []string{"\n\n", "\n", ". ", " "}

// span is a half-open [Start, End) character range within the source text.
type span struct {
	Start   int
	End     int
	Heading string
}

// Segmenter splits documents into chunks sized for embedding.
type Segmenter struct {
	maxChunk     int
	minChunk     int
	overlapRatio float64
	detector     SectionDetector
}

// New builds a Segmenter from config, falling back to defaults for zero
// values.
func New(cfg config.SegmenterConfig) *Segmenter {
	s := &Segmenter{
		maxChunk:     cfg.MaxChunk,
		minChunk:     cfg.MinChunk,
		overlapRatio: cfg.OverlapRatio,
		detector:     HeadingDetector{},
	}
	if s.maxChunk <= 0 {
		s.maxChunk = 1600
	}
	if s.minChunk <= 0 {
		s.minChunk = 800
	}
	if s.overlapRatio <= 0 || s.overlapRatio >= 1 {
		s.overlapRatio = 0.25
	}
	return s
}

// WithDetector swaps the section-detection strategy.
func (s *Segmenter) WithDetector(d SectionDetector) *Segmenter {
	s.detector = d
	return s
}

// Segment splits doc.CleanedText into chunks. Documents whose trimmed text is
// shorter than 100 characters yield nil. Chunk ordinals are contiguous over
// surviving chunks starting at startOrder.
func (s *Segmenter) Segment(doc *schema.Document, startOrder int) []schema.Chunk {
	text := doc.CleanedText
	if len(strings.TrimSpace(text)) < 100 {
		return nil
	}

	var spans []span
	if sections := s.detector.Detect(text); len(sections) > 0 {
		spans = s.sectionSpans(text, sections)
	} else {
		spans = s.windowSpans(text)
	}

	chunks := make([]schema.Chunk, 0, len(spans))
	order := startOrder
	for _, sp := range spans {
		chunkText := strings.TrimSpace(text[sp.Start:sp.End])
		if len(chunkText) < minChunkChars {
			continue
		}
		chunks = append(chunks, schema.Chunk{
			ID:             schema.ChunkID(doc.URL, sp.Start, sp.End, chunkText),
			URL:            doc.URL,
			Text:           chunkText,
			Order:          order,
			SectionHeading: sp.Heading,
			CharStart:      sp.Start,
			CharEnd:        sp.End,
			ContentType:    doc.ContentType,
			CrawlTime:      doc.CrawlTime,
		})
		order++
	}
	return chunks
}

// sectionSpans chunks along detected section boundaries. A section that fits
// in one window becomes a single chunk; longer sections are re-windowed with
// the section's heading carried onto every piece.
func (s *Segmenter) sectionSpans(text string, sections []Section) []span {
	lines := strings.Split(text, "\n")
	offsets := lineOffsets(lines)

	var spans []span
	for i, sec := range sections {
		start := offsets[sec.Line]
		var end int
		if i+1 < len(sections) {
			// Up to (not including) the next heading's line.
			end = offsets[sections[i+1].Line]
			if end > start {
				end-- // drop the newline before the next heading
			}
		} else {
			end = len(text)
		}
		if end <= start {
			continue
		}

		if end-start <= s.maxChunk {
			spans = append(spans, span{Start: start, End: end, Heading: sec.Heading})
			continue
		}

		// Section too large: slide within it, snapping to line breaks.
		stride := s.stride()
		for offset := start; offset < end; offset += stride {
			chunkEnd := offset + s.maxChunk
			if chunkEnd > end {
				chunkEnd = end
			} else if nl := strings.LastIndex(text[offset:chunkEnd], "\n"); nl > int(breakThreshold*float64(s.maxChunk)) {
				chunkEnd = offset + nl
			}
			spans = append(spans, span{Start: offset, End: chunkEnd, Heading: sec.Heading})
		}
	}
	return spans
}

// windowSpans covers the whole text with a sliding window. Windows prefer to
// end on a paragraph break, then a line break, then a sentence end, then a
// space, provided the break falls past 70% of the window. A trailing fragment
// shorter than the minimum chunk size merges into the previous span.
func (s *Segmenter) windowSpans(text string) []span {
	if len(text) <= s.maxChunk {
		return []span{{Start: 0, End: len(text)}}
	}

	var spans []span
	stride := s.stride()
	threshold := int(breakThreshold * float64(s.maxChunk))

	offset := 0
	for offset < len(text) {
		end := offset + s.maxChunk
		if end >= len(text) {
			end = len(text)
		} else {
			window := text[offset:end]
			for _, bp := range breakPoints {
				if pos := strings.LastIndex(window, bp); pos > threshold {
					end = offset + pos + len(bp)
					break
				}
			}
		}

		if end-offset < s.minChunk && len(spans) > 0 {
			// Too small to stand alone: fold into the previous span.
			spans[len(spans)-1].End = end
			spans[len(spans)-1].Heading = ""
			offset = end
			continue
		}

		spans = append(spans, span{Start: offset, End: end})
		if end == len(text) {
			break
		}
		offset += stride
	}
	return spans
}

func (s *Segmenter) stride() int {
	stride := int(float64(s.maxChunk) * (1 - s.overlapRatio))
	if stride < 1 {
		stride = 1
	}
	return stride
}

// lineOffsets returns the character offset of each line's first character,
// assuming lines were produced by splitting on "\n".
func lineOffsets(lines []string) []int {
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}
	return offsets
}
