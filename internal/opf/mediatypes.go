package opf

import (
	"net/http"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"github.com/disintegration/imaging"
)

var rootElementExpr = xpath.MustCompile("/*")

// MediaTypes resolves media types from extensions, raw data and XML roots.
type MediaTypes struct {
	byExt  map[string]string
	byRoot map[string]string
}

var extensionMediaTypes = map[string]string{
	"xhtml": XHTMLMediaType,
	"html":  XHTMLMediaType,
	"htm":   XHTMLMediaType,
	"ncx":   NCXMediaType,
	"opf":   PackageMediaType,
	"css":   "text/css",
	"svg":   "image/svg+xml",
	"webp":  "image/webp",
	"ttf":   "font/ttf",
	"otf":   "font/otf",
	"woff":  "font/woff",
	"woff2": "font/woff2",
	"mp3":   "audio/mpeg",
	"m4a":   "audio/mp4",
	"aac":   "audio/mp4",
	"ogg":   "audio/ogg",
	"opus":  "audio/opus",
	"mp4":   "video/mp4",
	"m4v":   "video/mp4",
	"webm":  "video/webm",
	"js":    "application/javascript",
	"smil":  "application/smil+xml",
	"pls":   "application/pls+xml",
	"xpgt":  "application/adobe-page-template+xml",
	"xml":   "application/xml",
	"txt":   "text/plain",
	"vtt":   "text/vtt",
	"ttml":  "application/ttml+xml",
}

var rootMediaTypes = map[string]string{
	"html":      XHTMLMediaType,
	"svg":       "image/svg+xml",
	"ncx":       NCXMediaType,
	"package":   PackageMediaType,
	"smil":      "application/smil+xml",
	"lexicon":   "application/pls+xml",
	"math":      "application/mathml+xml",
	"tt":        "application/ttml+xml",
	"container": "application/xml",
}

var imageFormatMediaTypes = map[imaging.Format]string{
	imaging.JPEG: "image/jpeg",
	imaging.PNG:  "image/png",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// DefaultMediaTypes returns the built-in lookup tables.
func DefaultMediaTypes() *MediaTypes {
	return &MediaTypes{byExt: extensionMediaTypes, byRoot: rootMediaTypes}
}

// FromExtension looks up a lower-case extension without the dot.
func (m *MediaTypes) FromExtension(ext, fallback string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return fallback
	}
	if f, err := imaging.FormatFromExtension(ext); err == nil {
		if mt, ok := imageFormatMediaTypes[f]; ok {
			return mt
		}
	}
	if mt, ok := m.byExt[ext]; ok {
		return mt
	}
	return fallback
}

// FromData sniffs a media type from the leading bytes of a file.
func (m *MediaTypes) FromData(data []byte, fallback string) string {
	if len(data) == 0 {
		return fallback
	}
	mt := http.DetectContentType(data)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	switch mt {
	case "application/octet-stream":
		return fallback
	case "text/xml":
		return "application/xml"
	case "text/html":
		return XHTMLMediaType
	}
	return mt
}

// FromXML narrows a generic XML file to a specific media type by looking at
// its root element.
func (m *MediaTypes) FromXML(data []byte, fallback string) string {
	doc, err := xmlquery.Parse(strings.NewReader(string(data)))
	if err != nil {
		return fallback
	}
	root := xmlquery.QuerySelector(doc, rootElementExpr)
	if root == nil {
		return fallback
	}
	if mt, ok := m.byRoot[root.Data]; ok {
		return mt
	}
	return fallback
}
