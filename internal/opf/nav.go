package opf

// navBookPath returns the book path of the navigation document: the one set
// through SetNavResource, else the manifest entry carrying the nav property.
func (p *Package) navBookPath(d *Document) string {
	if p.navPath != "" {
		return p.navPath
	}
	for _, me := range d.Manifest {
		if me.HasProperty("nav") {
			return p.entryBookPath(me.Href)
		}
	}
	return ""
}

// NavResource returns the version 3 navigation document.
func (p *Package) NavResource() (Resource, bool) {
	var (
		r  Resource
		ok bool
	)
	p.read("NavResource", func(d *Document) {
		bp := p.navBookPath(d)
		if bp == "" {
			return
		}
		pos := d.HrefPos(EncodeHref(relativePath(p.bookPath, bp)))
		if pos < 0 {
			return
		}
		r = NewResource(bp, d.Manifest[pos].MediaType)
		ok = true
	})
	return r, ok
}

// SetNavResource designates r as the navigation document. The nav property
// is moved onto r's manifest entry.
func (p *Package) SetNavResource(r Resource) {
	p.write("SetNavResource", func(d *Document) bool {
		id := p.manifestID(r, d)
		if id == "" {
			return false
		}
		p.navPath = r.BookPath
		if !isVersion3(d.Package.Version) {
			return false
		}
		for _, me := range d.Manifest {
			if me.ID != id && me.HasProperty("nav") {
				removeProperty(d, me.ID, "nav")
			}
		}
		addProperty(d, id, "nav")
		return true
	})
}
