/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: discover.go
Description: Spec discovery on HTML documentation pages. When a schema location
points at a Swagger UI / ReDoc style page instead of the raw document, scan the
markup for the underlying spec URL.
*/

package schema

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// specAttributes are the element/attribute pairs documentation UIs use to
// reference their spec, checked in order.
var specAttributes = []struct {
	selector string
	attr     string
}{
	{"redoc", "spec-url"},
	{"rapi-doc", "spec-url"},
	{"elements-api", "apiDescriptionUrl"},
	{"link[rel='service-desc']", "href"},
	{"a", "href"},
	{"script", "src"},
}

// DiscoverSpecURL fetches an HTML documentation page and returns the first
// spec URL it references, resolved against the page URL.
func DiscoverSpecURL(pageURL string) (string, error) {
	resp, err := http.Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetching documentation page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("documentation page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing documentation page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}

	var found string
	for _, probe := range specAttributes {
		doc.Find(probe.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value, ok := s.Attr(probe.attr)
			if !ok || !looksLikeSpec(value) {
				return true
			}
			if resolved, err := base.Parse(value); err == nil {
				found = resolved.String()
				return false
			}
			return true
		})
		if found != "" {
			return found, nil
		}
	}
	return "", fmt.Errorf("no spec link found on %s", pageURL)
}

// looksLikeSpec filters candidate URLs down to ones plausibly pointing at
// an OpenAPI document.
func looksLikeSpec(value string) bool {
	lowered := strings.ToLower(value)
	if idx := strings.IndexAny(lowered, "?#"); idx >= 0 {
		lowered = lowered[:idx]
	}
	switch {
	case strings.HasSuffix(lowered, "openapi.json"), strings.HasSuffix(lowered, "openapi.yaml"), strings.HasSuffix(lowered, "openapi.yml"):
		return true
	case strings.HasSuffix(lowered, "swagger.json"), strings.HasSuffix(lowered, "swagger.yaml"):
		return true
	case strings.Contains(lowered, "openapi") && (strings.HasSuffix(lowered, ".json") || strings.HasSuffix(lowered, ".yaml") || strings.HasSuffix(lowered, ".yml")):
		return true
	default:
		return false
	}
}
