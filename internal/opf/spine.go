package opf

import (
	"path"
	"slices"
	"strings"
)

var documentExtensions = []string{"htm", "html", "xhtml"}

// MoveReadingOrder moves the spine entry at from so that it follows the entry
// at after.
func (p *Package) MoveReadingOrder(from, after int) {
	p.write("MoveReadingOrder", func(d *Document) bool {
		n := len(d.Spine)
		if from < 0 || from >= n || after < 0 || after >= n {
			p.logger.Warn("reading order move out of range", "from", from, "after", after, "len", n)
			return false
		}
		if from == after || from == after+1 {
			return false
		}
		if from > after {
			after++
		}
		se := d.Spine[from]
		d.Spine = slices.Delete(d.Spine, from, from+1)
		d.Spine = slices.Insert(d.Spine, after, se)
		return true
	})
}

// ReadingOrder returns the spine position of r, or -1.
func (p *Package) ReadingOrder(r Resource) int {
	order := -1
	p.read("ReadingOrder", func(d *Document) {
		id := p.manifestID(r, d)
		if id == "" {
			return
		}
		for i, se := range d.Spine {
			if se.IDRef == id {
				order = i
				return
			}
		}
	})
	return order
}

// ReadingOrderAll maps the book path of each resource to its spine position.
// Resources outside the spine are left out.
func (p *Package) ReadingOrderAll(resources []Resource) map[string]int {
	out := make(map[string]int, len(resources))
	p.read("ReadingOrderAll", func(d *Document) {
		spinePos := make(map[string]int, len(d.Spine))
		for i, se := range d.Spine {
			if _, ok := spinePos[se.IDRef]; !ok {
				spinePos[se.IDRef] = i
			}
		}
		for _, r := range resources {
			id := d.ManifestIDForHref(p.href(r))
			if pos, ok := spinePos[id]; ok && id != "" {
				out[r.BookPath] = pos
			}
		}
	})
	return out
}

// SpineOrderResources returns the document resources among resources in
// spine order. Entries the spine does not reference are dropped.
func (p *Package) SpineOrderResources(resources []Resource) []Resource {
	var out []Resource
	p.read("SpineOrderResources", func(d *Document) {
		byPath := make(map[string]Resource, len(resources))
		for _, r := range resources {
			byPath[r.BookPath] = r
		}
		for _, se := range d.Spine {
			pos := d.IDPos(se.IDRef)
			if pos < 0 {
				continue
			}
			if r, ok := byPath[p.entryBookPath(d.Manifest[pos].Href)]; ok {
				out = append(out, r)
			}
		}
	})
	return out
}

// SpineOrderBookPaths returns the book paths of the spine entries in order.
func (p *Package) SpineOrderBookPaths() []string {
	var out []string
	p.read("SpineOrderBookPaths", func(d *Document) {
		for _, se := range d.Spine {
			if pos := d.IDPos(se.IDRef); pos > -1 {
				out = append(out, p.entryBookPath(d.Manifest[pos].Href))
			}
		}
	})
	return out
}

// UpdateSpineOrder rebuilds the spine in the order of resources. Itemrefs
// that already existed keep their attributes.
func (p *Package) UpdateSpineOrder(resources []Resource) {
	p.write("UpdateSpineOrder", func(d *Document) bool {
		existing := make(map[string]SpineEntry, len(d.Spine))
		for _, se := range d.Spine {
			existing[se.IDRef] = se
		}
		spine := make([]SpineEntry, 0, len(resources))
		for _, r := range resources {
			id := p.manifestID(r, d)
			if id == "" {
				continue
			}
			se, ok := existing[id]
			if !ok {
				se = SpineEntry{IDRef: id}
			}
			spine = append(spine, se)
		}
		d.Spine = spine
		return true
	})
}

// SetItemRefLinear sets the linear attribute of r's itemref. A linear
// itemref carries no attribute at all.
func (p *Package) SetItemRefLinear(r Resource, linear bool) {
	p.write("SetItemRefLinear", func(d *Document) bool {
		id := p.manifestID(r, d)
		if id == "" {
			return false
		}
		for i := range d.Spine {
			if d.Spine[i].IDRef != id {
				continue
			}
			if linear {
				d.Spine[i].Attributes.Delete("linear")
			} else {
				d.Spine[i].Attributes.Set("linear", "no")
			}
			return true
		}
		return false
	})
}

// AutoFixWellFormedErrors repairs structural damage that keeps the document
// from being useful: an empty spine is rebuilt from the document resources
// in href order, and references to ids missing from the manifest are
// dropped.
func (p *Package) AutoFixWellFormedErrors() {
	p.write("AutoFixWellFormedErrors", func(d *Document) bool {
		changed := false
		if len(d.Spine) == 0 {
			type doc struct{ id, href string }
			var docs []doc
			for _, me := range d.Manifest {
				href := DecodeHref(me.Href)
				ext := strings.ToLower(strings.TrimPrefix(path.Ext(href), "."))
				if me.MediaType == XHTMLMediaType || slices.Contains(documentExtensions, ext) {
					docs = append(docs, doc{me.ID, href})
				}
			}
			slices.SortStableFunc(docs, func(a, b doc) int { return strings.Compare(a.href, b.href) })
			for _, dc := range docs {
				d.Spine = append(d.Spine, SpineEntry{IDRef: dc.id})
			}
			changed = len(docs) > 0
		}

		n := len(d.Spine)
		d.Spine = slices.DeleteFunc(d.Spine, func(se SpineEntry) bool { return !d.HasID(se.IDRef) })
		changed = changed || len(d.Spine) != n

		if toc, ok := d.Package.Spine.Get("toc"); ok && !d.HasID(toc) {
			d.Package.Spine.Delete("toc")
			changed = true
		}

		n = len(d.Metadata)
		d.Metadata = slices.DeleteFunc(d.Metadata, func(me MetaEntry) bool {
			return isCoverMeta(me) && !d.HasID(me.Attributes.Value("content", ""))
		})
		changed = changed || len(d.Metadata) != n
		return changed
	})
}

// UpdateNCXOnSpine points the spine toc attribute at id.
func (p *Package) UpdateNCXOnSpine(id string) {
	p.write("UpdateNCXOnSpine", func(d *Document) bool {
		if d.Package.Spine.Value("toc", "") == id {
			return false
		}
		d.Package.Spine.Set("toc", id)
		return true
	})
}

// RemoveNCXOnSpine drops the spine toc attribute.
func (p *Package) RemoveNCXOnSpine() {
	p.write("RemoveNCXOnSpine", func(d *Document) bool {
		if !d.Package.Spine.Has("toc") {
			return false
		}
		d.Package.Spine.Delete("toc")
		return true
	})
}
