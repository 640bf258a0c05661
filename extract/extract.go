// Package extract pulls audit signals out of rendered page markup.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// emailPattern matches local@domain.tld with a TLD of at least two letters.
var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// Emails returns the distinct email-like tokens in rawHTML in first-seen
// order, truncated to limit entries. The result is never nil.
func Emails(rawHTML string, limit int) []string {
	emails := []string{}
	if limit <= 0 {
		return emails
	}

	seen := make(map[string]struct{})
	for _, m := range emailPattern.FindAllString(rawHTML, -1) {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		emails = append(emails, m)
		if len(emails) == limit {
			break
		}
	}
	return emails
}

// HeadingCount returns the number of h1 elements in rawHTML. Headings inside
// <template> are inert content, not part of the document, and are skipped.
func HeadingCount(rawHTML string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return 0
	}
	return doc.Find("h1").Not("template h1").Length()
}
