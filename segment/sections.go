package segment

import (
	"regexp"
	"strings"
)

// Section marks one detected heading line.
type Section struct {
	// Line is the index of the heading in the text's line split.
	Line int
	// Heading is the trimmed heading text.
	Heading string
}

// SectionDetector classifies lines into section headings. It is a swappable
// strategy so heading-based and sliding-window segmentation can be tested in
// isolation.
type SectionDetector interface {
	Detect(text string) []Section
}

var (
	// An all-uppercase line longer than 10 characters.
	allCapsRe = regexp.MustCompile(`^[A-Z][A-Z\s]{10,}$`)
	// A short capitalized line, optionally ending in a colon.
	shortHeadingRe = regexp.MustCompile(`^[A-Z][a-z]+.*:?\s*$`)
	// A numbered list line such as "1. Filing Status".
	numberedRe = regexp.MustCompile(`^\d+[.)]\s+[A-Z]`)
)

// HeadingDetector detects section boundaries in cleaned government-page text
// with line-level heuristics tuned for the kind of copy IRS-style pages carry:
// shouting headings, short title lines and numbered outlines.
type HeadingDetector struct{}

func (HeadingDetector) Detect(text string) []Section {
	var sections []Section
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case allCapsRe.MatchString(trimmed):
			sections = append(sections, Section{Line: i, Heading: trimmed})
		case len(trimmed) < 100 && shortHeadingRe.MatchString(trimmed):
			sections = append(sections, Section{Line: i, Heading: trimmed})
		case numberedRe.MatchString(trimmed):
			sections = append(sections, Section{Line: i, Heading: trimmed})
		}
	}
	return sections
}
