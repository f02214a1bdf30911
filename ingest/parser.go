package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/civicqa/govrag/schema"
)

// Parser turns a fetched body into a cleaned Document. HTML stripping here is
// deliberately shallow; pages needing heavier extraction come in through an
// external preprocessor and reach the pipeline as plain text.
type Parser interface {
	Parse(url string, contentType schema.ContentType, body []byte) (*schema.Document, error)
}

var (
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
)

// PageParser extracts the title and a cleaned text body from raw HTML, and
// passes non-HTML bodies through untouched.
type PageParser struct{}

func (PageParser) Parse(url string, contentType schema.ContentType, body []byte) (*schema.Document, error) {
	raw := string(body)
	title := url
	text := raw

	if contentType == schema.ContentTypeHTML || contentType == schema.ContentTypeFAQ {
		if m := titleRe.FindStringSubmatch(raw); m != nil {
			title = strings.TrimSpace(m[1])
		}
		text = scriptRe.ReplaceAllString(raw, " ")
		text = tagRe.ReplaceAllString(text, "\n")
		text = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'", "&nbsp;", " ").Replace(text)
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = strings.TrimSpace(blankRe.ReplaceAllString(text, "\n\n"))

	sum := sha256.Sum256([]byte(text))
	return &schema.Document{
		URL:         url,
		Title:       title,
		ContentType: contentType,
		CleanedText: text,
		CrawlTime:   clock().UTC(),
		ContentHash: hex.EncodeToString(sum[:]),
	}, nil
}
