package ioformats

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"ddm-news-harvester/internal/models"
)

// WriteNDJSON writes one post per line.
func WriteNDJSON(w io.Writer, posts []models.ResolvedPost) error {
	enc := json.NewEncoder(w)
	for _, p := range posts {
		if err := enc.Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the dataset with a header row; tags and topics are joined
// with ";".
func WriteCSV(w io.Writer, posts []models.ResolvedPost) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"title", "detail_url", "date", "tags", "description", "content", "topics", "error"}); err != nil {
		return err
	}
	for _, p := range posts {
		row := []string{p.Title, p.DetailURL, p.Date, strings.Join(p.Tags, ";"), p.Description, p.Content, strings.Join(p.Topics, ";"), p.Error}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
