package models

// ListingEntry is one row of the news listing. Entries are immutable once
// extracted; DetailURL is the key used to resolve the full article.
type ListingEntry struct {
	Title       string   `json:"title"`
	DetailURL   string   `json:"detail_url"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
}

// ResolvedPost is a ListingEntry joined with its detail-page content. At most
// one of Content and Error is meaningfully populated: a failed fetch or
// extraction leaves Content empty and records the cause in Error, while a
// content region that exists but holds no text yields empty Content and no
// Error.
type ResolvedPost struct {
	ListingEntry
	Content string   `json:"content"`
	Topics  []string `json:"topics,omitempty"`
	Error   string   `json:"error,omitempty"`
}
