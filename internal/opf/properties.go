package opf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ResourceProperties pairs a resource with its recomputed manifest properties.
type ResourceProperties struct {
	Resource   Resource
	Properties []string
}

// DetectManifestProperties inspects an XHTML document and returns the
// manifest properties its content calls for, in a stable order.
func DetectManifestProperties(content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse XHTML: %w", err)
	}

	var props []string
	if doc.Find("math").Length() > 0 {
		props = append(props, "mathml")
	}
	if doc.Find("script").Length() > 0 || hasEventHandlers(doc) {
		props = append(props, "scripted")
	}
	if doc.Find("svg").Length() > 0 {
		props = append(props, "svg")
	}
	if hasRemoteResources(doc) {
		props = append(props, "remote-resources")
	}
	if hasElement(doc, "epub:switch") {
		props = append(props, "switch")
	}
	return props, nil
}

func hasEventHandlers(doc *goquery.Document) bool {
	found := false
	doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, a := range s.Nodes[0].Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func hasElement(doc *goquery.Document, name string) bool {
	return doc.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return goquery.NodeName(s) == name
	}).Length() > 0
}

func hasRemoteResources(doc *goquery.Document) bool {
	found := false
	doc.Find("img[src], audio[src], video[src], source[src], iframe[src], link[rel='stylesheet'][href]").
		EachWithBreak(func(_ int, s *goquery.Selection) bool {
			ref, ok := s.Attr("src")
			if !ok {
				ref, _ = s.Attr("href")
			}
			if isRemoteURL(ref) {
				found = true
				return false
			}
			return true
		})
	return found
}

func isRemoteURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
