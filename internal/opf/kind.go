package opf

import (
	"path"
	"strings"
)

// ResourceKind is the closed set of resource kinds the engine branches on.
type ResourceKind int

const (
	KindMisc ResourceKind = iota
	KindHTML
	KindImage
	KindSVG
	KindNCX
	KindCSS
	KindFont
	KindAudio
	KindVideo
	KindXML
	KindOPF
)

var kindNames = [...]string{
	KindMisc:  "misc",
	KindHTML:  "html",
	KindImage: "image",
	KindSVG:   "svg",
	KindNCX:   "ncx",
	KindCSS:   "css",
	KindFont:  "font",
	KindAudio: "audio",
	KindVideo: "video",
	KindXML:   "xml",
	KindOPF:   "opf",
}

func (k ResourceKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// KindForMediaType classifies a media type.
func KindForMediaType(mediaType string) ResourceKind {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case mt == XHTMLMediaType || mt == "text/html":
		return KindHTML
	case mt == "image/svg+xml":
		return KindSVG
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case mt == NCXMediaType:
		return KindNCX
	case mt == "text/css":
		return KindCSS
	case strings.HasPrefix(mt, "font/") || strings.Contains(mt, "font") ||
		mt == "application/vnd.ms-opentype":
		return KindFont
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	case mt == PackageMediaType:
		return KindOPF
	case mt == "application/xml" || mt == "text/xml" || strings.HasSuffix(mt, "+xml"):
		return KindXML
	}
	return KindMisc
}

// Resource is a file of the book as resolved by the resource registry.
type Resource struct {
	BookPath  string // path from the book root, e.g. "OEBPS/Text/ch01.xhtml"
	MediaType string // optional hint
	Kind      ResourceKind
}

// NewResource builds a Resource, deriving the kind from the media type hint
// or, failing that, from the file extension.
func NewResource(bookPath, mediaType string) Resource {
	r := Resource{BookPath: bookPath, MediaType: mediaType}
	mt := mediaType
	if mt == "" {
		mt = DefaultMediaTypes().FromExtension(extension(bookPath), "")
	}
	r.Kind = KindForMediaType(mt)
	return r
}

// Filename returns the last path element.
func (r Resource) Filename() string {
	return path.Base(r.BookPath)
}

// IsDocument reports whether the resource belongs in the spine.
func (r Resource) IsDocument() bool {
	switch r.Kind {
	case KindHTML:
		return true
	case KindMisc, KindImage, KindSVG, KindNCX, KindCSS, KindFont, KindAudio, KindVideo, KindXML, KindOPF:
		return false
	}
	return false
}

func extension(p string) string {
	ext := path.Ext(p)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
