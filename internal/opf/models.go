package opf

import "strings"

// Namespaces used by the package document.
const (
	OPFNamespace = "http://www.idpf.org/2007/opf"
	DCNamespace  = "http://purl.org/dc/elements/1.1/"

	// PackageMediaType is the media type of the package document itself.
	PackageMediaType = "application/oebps-package+xml"
	// XHTMLMediaType is the media type of document (spine) resources.
	XHTMLMediaType = "application/xhtml+xml"
	// NCXMediaType is the media type of the legacy navigation control file.
	NCXMediaType = "application/x-dtbncx+xml"
)

// Attr is a single attribute. Name is the qualified name as written,
// e.g. "id", "opf:scheme", "xmlns:dc".
type Attr struct {
	Name  string
	Value string
}

// Attrs is an insertion-ordered attribute map.
type Attrs []Attr

// Get returns the value of the named attribute and whether it is present.
func (a Attrs) Get(name string) (string, bool) {
	for _, at := range a {
		if at.Name == name {
			return at.Value, true
		}
	}
	return "", false
}

// Value returns the named attribute or def when absent.
func (a Attrs) Value(name, def string) string {
	if v, ok := a.Get(name); ok {
		return v
	}
	return def
}

// Has reports whether the named attribute is present.
func (a Attrs) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Set replaces the value of an existing attribute in place, or appends it.
func (a *Attrs) Set(name, value string) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Name: name, Value: value})
}

// Delete removes the named attribute if present.
func (a *Attrs) Delete(name string) {
	out := (*a)[:0]
	for _, at := range *a {
		if at.Name != name {
			out = append(out, at)
		}
	}
	*a = out
}

// Clone returns an independent copy.
func (a Attrs) Clone() Attrs {
	if a == nil {
		return nil
	}
	out := make(Attrs, len(a))
	copy(out, a)
	return out
}

// PackageAttributes holds the attributes of the package root element and the
// spine element.
type PackageAttributes struct {
	Version          string
	UniqueIdentifier string // id of the dc:identifier acting as the canonical identifier
	Attributes       Attrs  // every other package attribute (xmlns, prefix, xml:lang, ...)
	Metadata         Attrs  // attributes of the metadata element (namespace declarations)
	Spine            Attrs  // attributes of the spine element, including toc
}

// MetaEntry is one child element of the metadata section.
// Name is "dc:<local>" for Dublin Core elements, "meta" or "link" for OPF
// elements, and the prefixed name as written otherwise.
type MetaEntry struct {
	Name       string
	Content    string
	Attributes Attrs
}

// IsDC reports whether the entry is a Dublin Core element.
func (m MetaEntry) IsDC() bool {
	return strings.HasPrefix(m.Name, "dc:")
}

// ManifestEntry is one item of the manifest.
type ManifestEntry struct {
	ID         string
	Href       string // percent-encoded, relative to the package document's folder
	MediaType  string
	Attributes Attrs // properties, fallback, media-overlay, ...
}

// Properties returns the space-separated properties attribute as a token list.
func (m ManifestEntry) Properties() []string {
	return strings.Fields(m.Attributes.Value("properties", ""))
}

// HasProperty reports whether the properties attribute contains prop.
func (m ManifestEntry) HasProperty(prop string) bool {
	for _, p := range m.Properties() {
		if p == prop {
			return true
		}
	}
	return false
}

// SpineEntry is one itemref of the spine.
type SpineEntry struct {
	IDRef      string
	Attributes Attrs // linear, properties, id
}

// Linear reports whether the itemref is part of the linear reading order.
func (s SpineEntry) Linear() bool {
	return s.Attributes.Value("linear", "yes") != "no"
}

// GuideEntry is one reference of the legacy guide.
type GuideEntry struct {
	Type  string
	Title string
	Href  string // may carry a #fragment
}

// BindingEntry is one mediaType handler of the (deprecated) bindings section.
type BindingEntry struct {
	MediaType string
	Handler   string
}

// Document is the parsed form of a package document. It is a transient value:
// the engine rebuilds it from the canonical text for every transaction.
type Document struct {
	Package  PackageAttributes
	Metadata []MetaEntry
	Manifest []ManifestEntry
	Spine    []SpineEntry
	Guide    []GuideEntry
	Bindings []BindingEntry

	index index
}
