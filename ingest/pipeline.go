// Package ingest crawls pages and writes their chunks to the vector store.
// A small worker pool shares one rate limiter, so concurrency bounds CPU-side
// work (parsing, segmenting) while the crawl stays polite.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/civicqa/govrag/common/logger"
	"github.com/civicqa/govrag/config"
	"github.com/civicqa/govrag/embedding"
	"github.com/civicqa/govrag/metrics"
	"github.com/civicqa/govrag/schema"
	"github.com/civicqa/govrag/segment"
	"github.com/civicqa/govrag/vectordb"
)

// Report aggregates one ingestion run.
type Report struct {
	Pages   int `json:"pages"`
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Chunks  int `json:"chunks"`
}

// Pipeline drives fetch, parse, segment, embed, upsert for a batch of urls.
type Pipeline struct {
	fetcher   Fetcher
	parser    Parser
	segmenter *segment.Segmenter
	embedder  embedding.Provider
	store     vectordb.Provider

	concurrency int
	maxPages    int
	dimensions  int
	encoder     *tiktoken.Tiktoken

	mu     sync.Mutex
	seen   map[string]bool
	report Report
}

// NewPipeline wires an ingestion pipeline. The embedder and store are the
// same instances the query side uses.
func NewPipeline(cfg *config.Config, fetcher Fetcher, parser Parser,
	embedder embedding.Provider, store vectordb.Provider) *Pipeline {
	concurrency := cfg.Ingest.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	if parser == nil {
		parser = PageParser{}
	}
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warnf("ingest: tokenizer unavailable, falling back to a length estimate: %v", err)
	}
	return &Pipeline{
		fetcher:     fetcher,
		parser:      parser,
		segmenter:   segment.New(cfg.Segmenter),
		embedder:    embedder,
		store:       store,
		concurrency: concurrency,
		maxPages:    cfg.Ingest.MaxPages,
		dimensions:  cfg.Embedding.Dimensions,
		encoder:     encoder,
		seen:        make(map[string]bool),
	}
}

// Run ingests urls and returns the aggregated report. Per-page failures are
// counted, logged and skipped; only a missing collection aborts the run.
func (p *Pipeline) Run(ctx context.Context, urls []string) (*Report, error) {
	if err := p.store.EnsureCollection(ctx, p.dimensions); err != nil {
		return nil, err
	}
	if p.maxPages > 0 && len(urls) > p.maxPages {
		logger.Warnf("ingest: truncating %d urls to the %d page limit", len(urls), p.maxPages)
		urls = urls[:p.maxPages]
	}

	work := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < p.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range work {
				p.ingestOne(ctx, url)
			}
		}()
	}
	for _, url := range urls {
		work <- url
	}
	close(work)
	wg.Wait()

	p.mu.Lock()
	report := p.report
	p.mu.Unlock()
	logger.Infof("ingest: %d pages, %d indexed, %d skipped, %d failed, %d chunks",
		report.Pages, report.Indexed, report.Skipped, report.Failed, report.Chunks)
	return &report, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, url string) {
	p.mu.Lock()
	p.report.Pages++
	if p.seen[url] {
		p.report.Skipped++
		p.mu.Unlock()
		metrics.IngestPages.WithLabelValues("skipped").Inc()
		return
	}
	p.seen[url] = true
	p.mu.Unlock()

	chunks, err := p.indexPage(ctx, url)
	p.mu.Lock()
	switch {
	case err != nil:
		p.report.Failed++
		metrics.IngestPages.WithLabelValues("failed").Inc()
		logger.Warnf("ingest: %s failed: %v", url, err)
	case chunks == 0:
		p.report.Skipped++
		metrics.IngestPages.WithLabelValues("skipped").Inc()
	default:
		p.report.Indexed++
		p.report.Chunks += chunks
		metrics.IngestPages.WithLabelValues("indexed").Inc()
		metrics.IngestChunks.Add(float64(chunks))
	}
	p.mu.Unlock()
}

// indexPage returns the number of chunks written, zero when the page is too
// thin to index.
func (p *Pipeline) indexPage(ctx context.Context, url string) (int, error) {
	body, contentType, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, err
	}
	doc, err := p.parser.Parse(url, contentType, body)
	if err != nil {
		return 0, err
	}
	chunks := p.segmenter.Segment(doc, 0)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}

	crawlTS := doc.CrawlTime.Format(time.RFC3339)
	records := make([]schema.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = schema.IndexRecord{
			ID:             c.ID,
			URL:            c.URL,
			Title:          doc.Title,
			SectionHeading: c.SectionHeading,
			Text:           c.Text,
			CharStart:      c.CharStart,
			CharEnd:        c.CharEnd,
			ContentType:    c.ContentType,
			CrawlTS:        crawlTS,
			EmbeddingModel: p.embedder.Model(),
			Tokens:         p.countTokens(c.Text),
			Hash:           doc.ContentHash,
			Vector:         vectors[i],
		}
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (p *Pipeline) countTokens(text string) int {
	if p.encoder == nil {
		return len(text) / 4
	}
	return len(p.encoder.Encode(text, nil, nil))
}
