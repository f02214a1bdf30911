package schema

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ContentType tags the origin format of a crawled page.
type ContentType string

const (
	ContentTypeHTML ContentType = "html"
	ContentTypePDF  ContentType = "pdf"
	ContentTypeFAQ  ContentType = "faq"
	ContentTypeForm ContentType = "form"
)

// ParseContentType maps a raw tag to a known ContentType, defaulting to html.
func ParseContentType(s string) ContentType {
	switch ContentType(s) {
	case ContentTypePDF, ContentTypeFAQ, ContentTypeForm:
		return ContentType(s)
	default:
		return ContentTypeHTML
	}
}

// Document is a crawled page after parsing: cleaned text plus crawl metadata.
// Produced by the ingest collaborators and consumed read-only by the segmenter.
type Document struct {
	URL         string
	Title       string
	ContentType ContentType
	CleanedText string
	CrawlTime   time.Time
	ContentHash string
}

// Chunk is a bounded, citable span of a document's cleaned text, the unit of
// retrieval. Offsets index into the owning document's cleaned text and satisfy
// 0 <= Start < End <= len(text). Chunks are immutable once emitted.
type Chunk struct {
	ID             string
	URL            string
	Text           string
	Order          int
	SectionHeading string
	CharStart      int
	CharEnd        int
	ContentType    ContentType
	CrawlTime      time.Time
}

// ChunkID derives the stable content-addressed id for a chunk: a UUIDv5 over
// (url, start, end, first 100 chars of text). Re-segmenting unchanged input
// reproduces identical ids, so re-indexing is idempotent.
func ChunkID(url string, start, end int, text string) string {
	head := text
	if len(head) > 100 {
		head = head[:100]
	}
	data := fmt.Sprintf("%s%d%d%s", url, start, end, head)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(data)).String()
}

// Candidate is one vector-search hit: the denormalized chunk payload plus a
// similarity score. Candidates are ephemeral, scoped to a single query's
// retrieval and rerank pass. Reranking replaces Score in place.
type Candidate struct {
	ID             string
	Score          float64
	URL            string
	Title          string
	SectionHeading string
	Text           string
	CharStart      int
	CharEnd        int
	ContentType    ContentType
	CrawlTS        string
}

// IndexRecord is the full payload written to the vector store for one chunk.
type IndexRecord struct {
	ID             string
	URL            string
	Title          string
	SectionHeading string
	Text           string
	CharStart      int
	CharEnd        int
	ContentType    ContentType
	CrawlTS        string
	EmbeddingModel string
	Tokens         int
	Hash           string
	Vector         []float32
}
