package opf

// index maps manifest ids and encoded hrefs to manifest positions.
type index struct {
	idPos   map[string]int
	hrefPos map[string]int
}

// Reindex rebuilds both lookup maps from the manifest in one pass.
func (d *Document) Reindex() {
	d.index.idPos = make(map[string]int, len(d.Manifest))
	d.index.hrefPos = make(map[string]int, len(d.Manifest))
	for i, me := range d.Manifest {
		d.index.idPos[me.ID] = i
		d.index.hrefPos[me.Href] = i
	}
}

func (d *Document) ensureIndex() {
	if d.index.idPos == nil || d.index.hrefPos == nil {
		d.Reindex()
	}
}

// IDPos returns the manifest position of id, or -1.
func (d *Document) IDPos(id string) int {
	d.ensureIndex()
	if pos, ok := d.index.idPos[id]; ok {
		return pos
	}
	return -1
}

// HrefPos returns the manifest position of the encoded href, or -1.
func (d *Document) HrefPos(href string) int {
	d.ensureIndex()
	if pos, ok := d.index.hrefPos[href]; ok {
		return pos
	}
	return -1
}

// HasID reports whether a manifest entry with id exists.
func (d *Document) HasID(id string) bool {
	return d.IDPos(id) > -1
}

// ManifestIDForHref returns the id of the manifest entry at href, or "".
func (d *Document) ManifestIDForHref(href string) string {
	if pos := d.HrefPos(href); pos > -1 {
		return d.Manifest[pos].ID
	}
	return ""
}

// AppendManifest adds an entry and patches both maps.
func (d *Document) AppendManifest(me ManifestEntry) {
	d.ensureIndex()
	n := len(d.Manifest)
	d.Manifest = append(d.Manifest, me)
	d.index.idPos[me.ID] = n
	d.index.hrefPos[me.Href] = n
}

// ReplaceManifest overwrites the entry at pos and patches both maps for any
// changed id or href.
func (d *Document) ReplaceManifest(pos int, me ManifestEntry) {
	if pos < 0 || pos >= len(d.Manifest) {
		return
	}
	d.ensureIndex()
	old := d.Manifest[pos]
	if old.ID != me.ID {
		delete(d.index.idPos, old.ID)
	}
	if old.Href != me.Href {
		delete(d.index.hrefPos, old.Href)
	}
	d.Manifest[pos] = me
	d.index.idPos[me.ID] = pos
	d.index.hrefPos[me.Href] = pos
}

// RemoveManifestAt deletes the entry at pos and rebuilds the maps.
func (d *Document) RemoveManifestAt(pos int) {
	d.removeManifestAt(pos)
	d.Reindex()
}

// removeManifestAt deletes without reindexing; batch callers reindex once.
func (d *Document) removeManifestAt(pos int) {
	if pos < 0 || pos >= len(d.Manifest) {
		return
	}
	d.Manifest = append(d.Manifest[:pos], d.Manifest[pos+1:]...)
	d.index = index{}
}
