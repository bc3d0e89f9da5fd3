package opf

import (
	"context"
	"strings"
)

// Normalizer turns arbitrary package document text into well-formed XML.
type Normalizer interface {
	Normalize(text, mediaType string) string
}

// NormalizerFunc adapts a function to Normalizer.
type NormalizerFunc func(text, mediaType string) string

// Normalize calls f.
func (f NormalizerFunc) Normalize(text, mediaType string) string { return f(text, mediaType) }

// TrimNormalizer strips a byte order mark and surrounding whitespace. It is
// the default when no real cleaner is configured.
var TrimNormalizer = NormalizerFunc(func(text, _ string) string {
	return strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
})

// NavProcessor edits the version 3 navigation document. Implementations
// manage their own locking and must never call back into the Package.
type NavProcessor interface {
	RemoveAllLandmarksForResource(r Resource)
}

// Settings supplies user defaults for new packages.
type Settings interface {
	DefaultMetadataLang() string
	DefaultVersion() string
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	Lang    string
	Version string
}

// DefaultMetadataLang returns s.Lang or "en".
func (s StaticSettings) DefaultMetadataLang() string {
	if s.Lang == "" {
		return "en"
	}
	return s.Lang
}

// DefaultVersion returns s.Version or "3.0".
func (s StaticSettings) DefaultVersion() string {
	if s.Version == "" {
		return "3.0"
	}
	return s.Version
}

// TextSource yields the stored package document text.
type TextSource interface {
	ReadText(ctx context.Context) (string, error)
}

// TextSink stores package document text.
type TextSink interface {
	WriteText(ctx context.Context, text string) error
}

// Warner shows a one-line warning to the user.
type Warner func(title, detail string)
