package importer

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ImageRehoster copies an external image into our own storage and returns the new URL.
type ImageRehoster interface {
	RehostImage(ctx context.Context, imageURL string, productID uuid.UUID) (string, error)
}

// SplitImageURLs splits a comma or semicolon separated cell and keeps the
// valid URLs in their original order.
func SplitImageURLs(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})

	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		u := cleanURL(part)
		if isValidImageURL(u) {
			urls = append(urls, u)
		}
	}
	return urls
}

// cleanURL removes whitespace and stray line breaks
func cleanURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.ReplaceAll(u, "\n", "")
	u = strings.ReplaceAll(u, "\r", "")
	return u
}

func isValidImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
