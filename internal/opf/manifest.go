package opf

import (
	"io/fs"
	"path"
	"slices"
	"strings"
)

const fallbackMediaType = "application/octet-stream"

// AddManifestEntry adds r to the manifest under an id derived from its filename.
// Document resources are appended to the spine as well.
func (p *Package) AddManifestEntry(r Resource) {
	p.write("AddManifestEntry", func(d *Document) bool {
		me := ManifestEntry{
			ID:        p.uniqueID(validID(r.Filename()), d),
			Href:      p.href(r),
			MediaType: p.resourceMediaType(r),
		}
		if d.HrefPos(me.Href) > -1 {
			p.logger.Debug("resource already in manifest", "path", r.BookPath)
			return false
		}
		d.AppendManifest(me)
		if r.IsDocument() {
			d.Spine = append(d.Spine, SpineEntry{IDRef: me.ID})
		}
		return true
	})
}

// resourceMediaType resolves the media type of r: the explicit hint, then
// the extension, then the file bytes, then the XML root element.
func (p *Package) resourceMediaType(r Resource) string {
	mt := r.MediaType
	if mt == "" {
		mt = p.mediaTypes.FromExtension(extension(r.Filename()), "")
	}
	var data []byte
	if (mt == "" || mt == "application/xml") && p.content != nil {
		b, err := fs.ReadFile(p.content, r.BookPath)
		if err != nil {
			p.logger.Debug("cannot sniff resource", "path", r.BookPath, "error", err)
		}
		data = b
	}
	if mt == "" {
		mt = p.mediaTypes.FromData(data, "")
	}
	if mt == "application/xml" {
		mt = p.mediaTypes.FromXML(data, "application/xml")
	}
	if mt == "" {
		mt = fallbackMediaType
	}
	return mt
}

// RemoveResource removes r from the manifest together with everything that
// refers to it.
func (p *Package) RemoveResource(r Resource) {
	p.write("RemoveResource", func(d *Document) bool {
		if len(d.Manifest) == 0 {
			return false
		}
		pos := p.detachResource(r, d)
		if pos > -1 {
			d.RemoveManifestAt(pos)
		}
		return true
	})
}

// BulkRemoveResources removes many resources in one transaction and
// rebuilds the indices once.
func (p *Package) BulkRemoveResources(resources []Resource) {
	p.write("BulkRemoveResources", func(d *Document) bool {
		if len(d.Manifest) == 0 {
			return false
		}
		var positions []int
		for _, r := range resources {
			if pos := p.detachResource(r, d); pos > -1 {
				positions = append(positions, pos)
			}
		}
		slices.Sort(positions)
		positions = slices.Compact(positions)
		for i := len(positions) - 1; i >= 0; i-- {
			d.removeManifestAt(positions[i])
		}
		d.Reindex()
		return true
	})
}

// detachResource strips every reference to r and returns its manifest
// position, which the caller deletes. The manifest itself is untouched.
func (p *Package) detachResource(r Resource, d *Document) int {
	pos := d.HrefPos(p.href(r))
	if pos < 0 {
		p.logger.Debug("removed resource not in manifest", "path", r.BookPath)
		return -1
	}
	itemID := d.Manifest[pos].ID

	switch r.Kind {
	case KindImage, KindSVG:
		p.removeCoverMetaFor(itemID, d)
	case KindHTML:
		for i, se := range d.Spine {
			if se.IDRef == itemID {
				d.Spine = append(d.Spine[:i], d.Spine[i+1:]...)
				break
			}
		}
		p.removeAllGuideReferences(r, d)
		if isVersion3(p.version) && p.nav != nil {
			p.nav.RemoveAllLandmarksForResource(r)
		}
		if r.BookPath == p.navPath {
			p.navPath = ""
		}
	case KindNCX:
		if d.Package.Spine.Value("toc", "") == itemID {
			d.Package.Spine.Delete("toc")
		}
	case KindMisc, KindCSS, KindFont, KindAudio, KindVideo, KindXML, KindOPF:
	}
	return pos
}

// ResourceRenamed updates the manifest after r was renamed inside its
// folder. The manifest id is derived from the filename, so it changes and
// every reference to the old id follows.
func (p *Package) ResourceRenamed(r Resource, oldBookPath string) {
	p.write("ResourceRenamed", func(d *Document) bool {
		return p.relocate(d, map[string]Resource{oldBookPath: r}, true)
	})
}

// BulkResourcesRenamed applies many renames, keyed by old book path, in one
// transaction. Entries are matched on their href before the batch, so swaps
// and chains of renames land on the right entries.
func (p *Package) BulkResourcesRenamed(renamed map[string]Resource) {
	p.write("BulkResourcesRenamed", func(d *Document) bool {
		return p.relocate(d, renamed, true)
	})
}

// ResourceMoved updates the href of r after it moved to another folder.
// The manifest id never changes on a move.
func (p *Package) ResourceMoved(r Resource, oldBookPath string) {
	p.write("ResourceMoved", func(d *Document) bool {
		return p.relocate(d, map[string]Resource{oldBookPath: r}, false)
	})
}

// BulkResourcesMoved applies many moves, keyed by old book path, in one
// transaction.
func (p *Package) BulkResourcesMoved(moved map[string]Resource) {
	p.write("BulkResourcesMoved", func(d *Document) bool {
		return p.relocate(d, moved, false)
	})
}

// relocate rewrites the manifest entries whose current book path is a key of
// targets. Every entry is visited once in manifest order; with rederiveIDs
// set the id follows the new filename and all id references are remapped
// in a single pass.
func (p *Package) relocate(d *Document, targets map[string]Resource, rederiveIDs bool) bool {
	matched := make(map[int]Resource, len(targets))
	for i, me := range d.Manifest {
		if r, ok := targets[p.entryBookPath(me.Href)]; ok {
			matched[i] = r
		}
	}
	if len(matched) < len(targets) {
		p.logger.Debug("relocated resources not in manifest", "requested", len(targets), "found", len(matched))
	}
	if len(matched) == 0 {
		return false
	}

	taken := make(map[string]bool, len(d.Manifest))
	for i, me := range d.Manifest {
		if _, ok := matched[i]; !ok {
			taken[me.ID] = true
		}
	}

	ids := map[string]string{}
	hrefs := map[string]string{}
	var ncxID string
	for i := range d.Manifest {
		r, ok := matched[i]
		if !ok {
			continue
		}
		me := &d.Manifest[i]
		newHref := p.href(r)
		hrefs[me.Href] = newHref
		me.Href = newHref
		if !rederiveIDs {
			continue
		}
		newID := validID(r.Filename())
		if taken[newID] {
			newID = "x" + p.newUUID()
		}
		taken[newID] = true
		if newID != me.ID {
			ids[me.ID] = newID
			me.ID = newID
		}
		if r.Kind == KindNCX {
			ncxID = newID
		}
	}
	d.Reindex()

	applyIDMap(d, ids)
	if ncxID != "" {
		d.Package.Spine.Set("toc", ncxID)
	}
	retargetGuide(d, hrefs)
	if r, ok := targets[p.navPath]; ok && p.navPath != "" {
		p.navPath = r.BookPath
	}
	return true
}

// retargetGuide points guide references at the old hrefs in moved to the
// new ones, keeping fragments.
func retargetGuide(d *Document, moved map[string]string) {
	for i, ge := range d.Guide {
		base, frag := splitFragment(ge.Href)
		newHref, ok := moved[base]
		if !ok {
			continue
		}
		if frag != "" {
			d.Guide[i].Href = newHref + "#" + frag
		} else {
			d.Guide[i].Href = newHref
		}
	}
}

// applyIDMap rewrites every reference to a manifest id: spine itemrefs, the
// spine toc, the cover meta, fallback and media-overlay attributes and
// refines targets.
func applyIDMap(d *Document, ids map[string]string) {
	for i, se := range d.Spine {
		if n, ok := ids[se.IDRef]; ok {
			d.Spine[i].IDRef = n
		}
	}
	if toc, ok := d.Package.Spine.Get("toc"); ok {
		if n, ok := ids[toc]; ok {
			d.Package.Spine.Set("toc", n)
		}
	}
	for i := range d.Manifest {
		for _, attr := range []string{"fallback", "media-overlay"} {
			if v, ok := d.Manifest[i].Attributes.Get(attr); ok {
				if n, ok := ids[v]; ok {
					d.Manifest[i].Attributes.Set(attr, n)
				}
			}
		}
	}
	for i, me := range d.Metadata {
		if isCoverMeta(me) {
			if n, ok := ids[me.Attributes.Value("content", "")]; ok {
				d.Metadata[i].Attributes.Set("content", n)
			}
		}
		if ref, ok := me.Attributes.Get("refines"); ok && strings.HasPrefix(ref, "#") {
			if n, ok := ids[ref[1:]]; ok {
				d.Metadata[i].Attributes.Set("refines", "#"+n)
			}
		}
	}
}

// RebaseManifestIDs re-derives every manifest id from its filename and
// rewrites all references.
func (p *Package) RebaseManifestIDs() {
	p.write("RebaseManifestIDs", func(d *Document) bool {
		ids := make(map[string]string, len(d.Manifest))
		taken := make(map[string]bool, len(d.Manifest))
		for _, me := range d.Manifest {
			base, _ := splitFragment(DecodeHref(me.Href))
			candidate := validID(path.Base(base))
			if taken[candidate] {
				candidate = "x" + p.newUUID()
			}
			taken[candidate] = true
			if candidate != me.ID {
				ids[me.ID] = candidate
			}
		}
		if len(ids) == 0 {
			return false
		}
		for i := range d.Manifest {
			if n, ok := ids[d.Manifest[i].ID]; ok {
				d.Manifest[i].ID = n
			}
		}
		d.Reindex()
		applyIDMap(d, ids)
		return true
	})
}

// UpdateManifestMediaTypes re-resolves the media type of each resource and
// fixes manifest entries that disagree.
func (p *Package) UpdateManifestMediaTypes(resources []Resource) {
	p.write("UpdateManifestMediaTypes", func(d *Document) bool {
		changed := false
		for _, r := range resources {
			pos := d.HrefPos(p.href(r))
			if pos < 0 {
				continue
			}
			mt := p.resourceMediaType(r)
			if d.Manifest[pos].MediaType != mt {
				me := d.Manifest[pos]
				me.MediaType = mt
				d.ReplaceManifest(pos, me)
				changed = true
			}
		}
		return changed
	})
}

// UpdateManifestProperties replaces the properties of the given resources
// (version 3 only). The navigation document keeps its nav property and the
// cover image keeps cover-image. Without a navigation document the first
// resource asking for nav becomes it.
func (p *Package) UpdateManifestProperties(updates []ResourceProperties) {
	p.write("UpdateManifestProperties", func(d *Document) bool {
		if !isVersion3(d.Package.Version) {
			return false
		}
		p.applyProperties(d, updates)
		return true
	})
}

func (p *Package) applyProperties(d *Document, updates []ResourceProperties) {
	navPath := p.navBookPath(d)
	for _, u := range updates {
		pos := d.HrefPos(p.href(u.Resource))
		if pos < 0 {
			continue
		}
		var props []string
		for _, prop := range u.Properties {
			if prop == "nav" {
				if navPath == "" {
					navPath = u.Resource.BookPath
				}
				if u.Resource.BookPath != navPath {
					continue
				}
			}
			if !slices.Contains(props, prop) {
				props = append(props, prop)
			}
		}
		if navPath != "" && u.Resource.BookPath == navPath && !slices.Contains(props, "nav") {
			props = append(props, "nav")
		}
		me := d.Manifest[pos]
		setProperties(&me, props)
		d.ReplaceManifest(pos, me)
	}
	if pos := coverMetaPos(d); pos > -1 {
		addProperty(d, d.Metadata[pos].Attributes.Value("content", ""), "cover-image")
	}
}

// RecomputeManifestProperties reads each HTML resource from the content
// file system and stores the properties its markup calls for (version 3
// only). Resources that cannot be read or parsed are skipped.
func (p *Package) RecomputeManifestProperties(resources []Resource) {
	if p.content == nil {
		p.logger.Debug("no content to inspect for manifest properties")
		return
	}
	var updates []ResourceProperties
	for _, r := range resources {
		if r.Kind != KindHTML {
			continue
		}
		data, err := fs.ReadFile(p.content, r.BookPath)
		if err != nil {
			p.logger.Warn("cannot read resource", "path", r.BookPath, "error", err)
			continue
		}
		props, err := DetectManifestProperties(data)
		if err != nil {
			p.logger.Warn("cannot inspect resource", "path", r.BookPath, "error", err)
			continue
		}
		updates = append(updates, ResourceProperties{Resource: r, Properties: props})
	}
	if len(updates) == 0 {
		return
	}
	p.write("RecomputeManifestProperties", func(d *Document) bool {
		if !isVersion3(d.Package.Version) {
			return false
		}
		p.applyProperties(d, updates)
		return true
	})
}

// ManifestPropertiesForResource returns the properties attribute of r
// (version 3 only).
func (p *Package) ManifestPropertiesForResource(r Resource) string {
	var props string
	p.read("ManifestPropertiesForResource", func(d *Document) {
		if !isVersion3(d.Package.Version) {
			return
		}
		if pos := d.HrefPos(p.href(r)); pos > -1 {
			props = d.Manifest[pos].Attributes.Value("properties", "")
		}
	})
	return props
}

// ManifestPropertiesForPaths maps book paths to their properties attribute
// (version 3 only).
func (p *Package) ManifestPropertiesForPaths() map[string]string {
	out := map[string]string{}
	if !isVersion3(p.EpubVersion()) {
		return out
	}
	p.read("ManifestPropertiesForPaths", func(d *Document) {
		for _, me := range d.Manifest {
			if props, ok := me.Attributes.Get("properties"); ok {
				out[p.entryBookPath(me.Href)] = props
			}
		}
	})
	return out
}

// AddNCXItem adds the NCX at ncxBookPath to the manifest, preferring id,
// and returns the id used. An NCX already listed keeps its id.
func (p *Package) AddNCXItem(ncxBookPath, id string) string {
	var newID string
	p.write("AddNCXItem", func(d *Document) bool {
		href := EncodeHref(relativePath(p.bookPath, ncxBookPath))
		if pos := d.HrefPos(href); pos > -1 {
			newID = d.Manifest[pos].ID
			return false
		}
		me := ManifestEntry{
			ID:        p.uniqueID(id, d),
			Href:      href,
			MediaType: NCXMediaType,
		}
		d.AppendManifest(me)
		newID = me.ID
		return true
	})
	return newID
}

// UpdateNCXLocationInManifest points the toc manifest entry at ncx.
func (p *Package) UpdateNCXLocationInManifest(ncx Resource) {
	p.write("UpdateNCXLocationInManifest", func(d *Document) bool {
		pos := d.IDPos(d.Package.Spine.Value("toc", ""))
		if pos < 0 {
			return false
		}
		me := d.Manifest[pos]
		me.Href = p.href(ncx)
		d.ReplaceManifest(pos, me)
		return true
	})
}

func setProperties(me *ManifestEntry, props []string) {
	if len(props) == 0 {
		me.Attributes.Delete("properties")
		return
	}
	me.Attributes.Set("properties", strings.Join(props, " "))
}

// addProperty adds prop to the manifest entry with id, if it exists.
func addProperty(d *Document, id, prop string) {
	pos := d.IDPos(id)
	if id == "" || pos < 0 {
		return
	}
	me := d.Manifest[pos]
	props := me.Properties()
	if slices.Contains(props, prop) {
		return
	}
	setProperties(&me, append(props, prop))
	d.ReplaceManifest(pos, me)
}

// removeProperty strips prop from the manifest entry with id, if it exists.
func removeProperty(d *Document, id, prop string) {
	pos := d.IDPos(id)
	if id == "" || pos < 0 {
		return
	}
	me := d.Manifest[pos]
	props := me.Properties()
	if !slices.Contains(props, prop) {
		return
	}
	setProperties(&me, slices.DeleteFunc(props, func(s string) bool { return s == prop }))
	d.ReplaceManifest(pos, me)
}
