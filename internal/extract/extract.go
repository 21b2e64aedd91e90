package extract

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"ddm-news-harvester/internal/models"
)

// ExtractionError means the markup no longer has the structure we expect,
// e.g. the article content region disappeared after a site redesign.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("extract: %s", e.Reason)
}

// Extractor turns already-fetched listing and article markup into structured
// data. It performs no I/O.
type Extractor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

var nextPageRe = regexp.MustCompile(`pagingHelper\.getList\('Q',\s*(\d+)\)`)

// Listing extracts the post rows of one listing page and the URL of the next
// page, or "" when the forward-navigation control is absent or unparseable.
// Rows that are form scaffolding or lack a resolvable title link are skipped
// with a warning.
func (e *Extractor) Listing(r io.Reader, contentType, pageURL string) ([]models.ListingEntry, string, error) {
	doc, err := decode(r, contentType)
	if err != nil {
		return nil, "", &ExtractionError{URL: pageURL, Reason: err.Error()}
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, "", &ExtractionError{URL: pageURL, Reason: "unparseable page url"}
	}

	var entries []models.ListingEntry
	doc.Find(".item").Each(func(i int, s *goquery.Selection) {
		// the listing container embeds search-form rows alongside the posts
		if s.Find("input,select,textarea,button").Length() > 0 {
			return
		}
		link := s.Find(".cont .title a").First()
		if link.Length() == 0 {
			e.log.Warn("listing row without title link skipped", "page", pageURL)
			return
		}
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if href == "" {
			e.log.Warn("listing row without href skipped", "page", pageURL, "title", strings.TrimSpace(link.Text()))
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			e.log.Warn("listing row with bad href skipped", "page", pageURL, "href", href)
			return
		}

		entry := models.ListingEntry{
			Title:       strings.TrimSpace(link.Text()),
			DetailURL:   base.ResolveReference(ref).String(),
			Date:        strings.TrimSpace(s.Find(".date").First().Text()),
			Description: strings.TrimSpace(s.Find(".desc").First().Text()),
		}
		s.Find(".tag").Each(func(i int, t *goquery.Selection) {
			if tag := strings.TrimSpace(t.Text()); tag != "" {
				entry.Tags = append(entry.Tags, tag)
			}
		})
		entries = append(entries, entry)
	})

	return entries, e.nextPageURL(doc, base), nil
}

// nextPageURL reads the pagination control. The site drives paging through an
// onclick helper rather than a plain href, so the next page number is pulled
// out of `pagingHelper.getList('Q', N)` and substituted into the current URL.
func (e *Extractor) nextPageURL(doc *goquery.Document, base *url.URL) string {
	next := doc.Find(`a.next[title="下一頁"]`).First()
	if next.Length() == 0 {
		return ""
	}
	m := nextPageRe.FindStringSubmatch(next.AttrOr("onclick", ""))
	if m == nil {
		e.log.Warn("next-page control present but unparseable", "page", base.String())
		return ""
	}
	u := *base
	q := u.Query()
	q.Set("page", m[1])
	u.RawQuery = q.Encode()
	return u.String()
}

// Article extracts the full text of a detail page. A missing content region
// is an *ExtractionError; a present region with no paragraph text yields ""
// with no error.
func (e *Extractor) Article(r io.Reader, contentType string) (string, error) {
	doc, err := decode(r, contentType)
	if err != nil {
		return "", &ExtractionError{Reason: err.Error()}
	}
	region := doc.Find(".district").First()
	if region.Length() == 0 {
		return "", &ExtractionError{Reason: "content region .district not found"}
	}
	var paragraphs []string
	region.Find("p").Each(func(i int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			paragraphs = append(paragraphs, t)
		}
	})
	return strings.Join(paragraphs, "\n\n"), nil
}

// decode sniffs the charset and hands goquery a UTF-8 document. A read
// failure is surfaced rather than parsing the bytes received so far: a body
// cut off mid-transfer must never pass for a complete page.
func decode(r io.Reader, contentType string) (*goquery.Document, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	data := buf.Bytes()

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return nil, err
		}
		utf8data = data
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
}
