package opf

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

const urnUUIDPrefix = "urn:uuid:"

// mainIdentifierPos returns the position of the dc:identifier whose id is
// the package unique-identifier, or -1.
func mainIdentifierPos(d *Document) int {
	uid := d.Package.UniqueIdentifier
	if uid == "" {
		return -1
	}
	return slices.IndexFunc(d.Metadata, func(me MetaEntry) bool {
		return me.Name == "dc:identifier" && me.Attributes.Value("id", "") == uid
	})
}

// parseUUIDIdentifier returns the UUID an identifier value carries, with or
// without the urn prefix.
func parseUUIDIdentifier(value string) (uuid.UUID, bool) {
	value = strings.TrimSpace(value)
	if len(value) >= len(urnUUIDPrefix) && strings.EqualFold(value[:len(urnUUIDPrefix)], urnUUIDPrefix) {
		value = value[len(urnUUIDPrefix):]
	}
	u, err := uuid.Parse(value)
	if err != nil || u == uuid.Nil {
		return uuid.Nil, false
	}
	return u, true
}

// firstUUIDIdentifier returns the first dc:identifier carrying a UUID.
func firstUUIDIdentifier(d *Document) (uuid.UUID, bool) {
	for _, me := range d.Metadata {
		if me.Name != "dc:identifier" {
			continue
		}
		if u, ok := parseUUIDIdentifier(me.Content); ok {
			return u, true
		}
	}
	return uuid.Nil, false
}

// MainIdentifierValue returns the text of the canonical identifier, or "".
func (p *Package) MainIdentifierValue() string {
	var value string
	p.read("MainIdentifierValue", func(d *Document) {
		if pos := mainIdentifierPos(d); pos > -1 {
			value = d.Metadata[pos].Content
		}
	})
	return value
}

// UUIDIdentifierValue returns the book's UUID, creating a UUID identifier
// first when none exists.
func (p *Package) UUIDIdentifierValue() string {
	p.EnsureUUIDIdentifierPresent()
	var value string
	p.read("UUIDIdentifierValue", func(d *Document) {
		if u, ok := firstUUIDIdentifier(d); ok {
			value = u.String()
		}
	})
	return value
}

// EnsureUUIDIdentifierPresent adds a urn:uuid identifier unless some
// dc:identifier already holds a valid UUID.
func (p *Package) EnsureUUIDIdentifierPresent() {
	p.write("EnsureUUIDIdentifierPresent", func(d *Document) bool {
		if _, ok := firstUUIDIdentifier(d); ok {
			return false
		}
		p.writeIdentifier(d, "UUID", urnUUIDPrefix+p.newUUID())
		return true
	})
}

// writeIdentifier appends a dc:identifier. Whether it becomes the canonical
// identifier depends on the identifier policy; a book without a resolvable
// canonical identifier always adopts it.
func (p *Package) writeIdentifier(d *Document, scheme, value string) {
	me := MetaEntry{Name: "dc:identifier", Content: value}
	main := mainIdentifierPos(d)

	repoint := main < 0
	if !repoint && p.idPolicy == IdentifierRepoint {
		_, isUUID := parseUUIDIdentifier(d.Metadata[main].Content)
		repoint = !isUUID
	}
	if repoint {
		id := d.Package.UniqueIdentifier
		if id == "" || main > -1 || metadataIDTaken(d, id) {
			id = p.uniqueMetadataID("BookId", d)
		}
		me.Attributes.Set("id", id)
		d.Package.UniqueIdentifier = id
	}
	if !isVersion3(p.version) {
		me.Attributes.Set("opf:scheme", scheme)
	}
	d.Metadata = append(d.Metadata, me)
}

func metadataIDTaken(d *Document, id string) bool {
	if d.HasID(id) {
		return true
	}
	return slices.ContainsFunc(d.Metadata, func(me MetaEntry) bool {
		return me.Attributes.Value("id", "") == id
	})
}

func (p *Package) uniqueMetadataID(preferred string, d *Document) string {
	if !metadataIDTaken(d, preferred) {
		return preferred
	}
	return "x" + p.newUUID()
}

// DCMetadata returns every Dublin Core entry in document order.
func (p *Package) DCMetadata() []MetaEntry {
	var out []MetaEntry
	p.read("DCMetadata", func(d *Document) {
		for _, me := range d.Metadata {
			if me.IsDC() {
				out = append(out, me)
			}
		}
	})
	return out
}

// DCMetadataValues returns the text of every entry named name, with or
// without the "dc:" prefix.
func (p *Package) DCMetadataValues(name string) []string {
	if !strings.HasPrefix(name, "dc:") {
		name = "dc:" + name
	}
	var out []string
	p.read("DCMetadataValues", func(d *Document) {
		for _, me := range d.Metadata {
			if me.Name == name {
				out = append(out, me.Content)
			}
		}
	})
	return out
}

// SetDCMetadata replaces every Dublin Core entry except the canonical
// identifier with entries. Entries that are not Dublin Core are ignored.
func (p *Package) SetDCMetadata(entries []MetaEntry) {
	p.write("SetDCMetadata", func(d *Document) bool {
		main := mainIdentifierPos(d)
		insertAt := -1
		kept := make([]MetaEntry, 0, len(d.Metadata))
		for i, me := range d.Metadata {
			if me.IsDC() && i != main {
				if insertAt < 0 {
					insertAt = len(kept)
				}
				continue
			}
			kept = append(kept, me)
		}
		if insertAt < 0 {
			insertAt = 0
			if main > -1 {
				insertAt = slices.IndexFunc(kept, func(me MetaEntry) bool { return me.Name == "dc:identifier" }) + 1
			}
		}
		var added []MetaEntry
		for _, me := range entries {
			if !me.IsDC() {
				continue
			}
			added = append(added, MetaEntry{Name: me.Name, Content: me.Content, Attributes: me.Attributes.Clone()})
		}
		d.Metadata = slices.Insert(kept, insertAt, added...)
		return true
	})
}

// PrimaryBookTitle returns the first dc:title, or "".
func (p *Package) PrimaryBookTitle() string {
	if titles := p.DCMetadataValues("title"); len(titles) > 0 {
		return titles[0]
	}
	return ""
}

// PrimaryBookLanguage returns the first dc:language or the default language.
func (p *Package) PrimaryBookLanguage() string {
	var lang string
	p.read("PrimaryBookLanguage", func(d *Document) { lang = p.primaryLanguage(d) })
	if lang == "" {
		lang = p.settings.DefaultMetadataLang()
	}
	return lang
}

// MetadataXML returns the metadata element as XML.
func (p *Package) MetadataXML() string {
	var out string
	p.read("MetadataXML", func(d *Document) { out = MetadataXML(d) })
	return out
}

// MediaOverlayActiveClassSelectors returns the CSS class selectors declared
// by media:active-class and media:playback-active-class, in that order.
// Missing declarations are left out.
func (p *Package) MediaOverlayActiveClassSelectors() []string {
	var out []string
	p.read("MediaOverlayActiveClassSelectors", func(d *Document) {
		for _, prop := range []string{"media:active-class", "media:playback-active-class"} {
			for _, me := range d.Metadata {
				if me.Name == "meta" && me.Attributes.Value("property", "") == prop && me.Content != "" {
					out = append(out, "."+strings.TrimSpace(me.Content))
					break
				}
			}
		}
	})
	return out
}

// StampToolVersion records the authoring tool as meta name=name
// content=version, updating an existing stamp.
func (p *Package) StampToolVersion(name, version string) {
	p.write("StampToolVersion", func(d *Document) bool {
		for i, me := range d.Metadata {
			if me.Name == "meta" && me.Attributes.Value("name", "") == name {
				if me.Attributes.Value("content", "") == version {
					return false
				}
				d.Metadata[i].Attributes.Set("content", version)
				return true
			}
		}
		d.Metadata = append(d.Metadata, MetaEntry{
			Name:       "meta",
			Attributes: Attrs{{Name: "name", Value: name}, {Name: "content", Value: version}},
		})
		return true
	})
}

// AddModificationDateMeta records the modification time and returns the
// value written. Version 3 keeps one dcterms:modified meta in UTC seconds;
// version 2 keeps one dc:date with opf:event="modification" as YYYY-MM-DD.
func (p *Package) AddModificationDateMeta() string {
	var value string
	p.write("AddModificationDateMeta", func(d *Document) bool {
		var match func(MetaEntry) bool
		var entry MetaEntry
		if isVersion3(p.version) {
			value = p.timestamp()
			match = func(me MetaEntry) bool {
				return me.Name == "meta" && me.Attributes.Value("property", "") == "dcterms:modified" &&
					!me.Attributes.Has("refines")
			}
			entry = MetaEntry{Name: "meta", Content: value, Attributes: Attrs{{Name: "property", Value: "dcterms:modified"}}}
		} else {
			now := p.now()
			value = fmt.Sprintf("%04d-%02d-%02d", now.Year(), int(now.Month()), now.Day())
			match = func(me MetaEntry) bool {
				return me.Name == "dc:date" && me.Attributes.Value("opf:event", "") == "modification"
			}
			entry = MetaEntry{Name: "dc:date", Content: value, Attributes: Attrs{{Name: "opf:event", Value: "modification"}}}
		}

		pos := slices.IndexFunc(d.Metadata, match)
		if pos < 0 {
			d.Metadata = append(d.Metadata, entry)
			return true
		}
		d.Metadata[pos].Content = value
		rest := slices.DeleteFunc(d.Metadata[pos+1:], match)
		d.Metadata = d.Metadata[:pos+1+len(rest)]
		return true
	})
	return value
}
