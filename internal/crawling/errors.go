// Package crawling gathers a prospect's website content, preferring a multi-page provider crawl
// and falling back to single-page scrapes.
package crawling

import "fmt"

// CrawlError represents a failure to obtain any content for a URL.
type CrawlError struct {
	URL     string
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error for %s: %s", e.URL, e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}
