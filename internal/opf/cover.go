package opf

import (
	"path"
	"slices"
	"strings"
)

// CoverInfo holds information about the detected cover image.
type CoverInfo struct {
	ManifestID      string
	Href            string
	MediaType       string
	DetectionMethod string // "properties", "meta", "guide", "filename"
}

func isCoverMeta(me MetaEntry) bool {
	return me.Name == "meta" && me.Attributes.Value("name", "") == "cover"
}

// coverMetaPos returns the position of the first cover meta, or -1.
func coverMetaPos(d *Document) int {
	return slices.IndexFunc(d.Metadata, isCoverMeta)
}

// IsCoverImage reports whether the cover meta points at r.
func (p *Package) IsCoverImage(r Resource) bool {
	var is bool
	p.read("IsCoverImage", func(d *Document) {
		id := d.ManifestIDForHref(p.href(r))
		pos := coverMetaPos(d)
		is = id != "" && pos > -1 && d.Metadata[pos].Attributes.Value("content", "") == id
	})
	return is
}

// CoverImageExists reports whether a cover meta is present.
func (p *Package) CoverImageExists() bool {
	var exists bool
	p.read("CoverImageExists", func(d *Document) {
		exists = coverMetaPos(d) > -1
	})
	return exists
}

// SetResourceAsCoverImage makes r the one cover image of the book. On
// version 3 the cover-image manifest property moves along with it.
func (p *Package) SetResourceAsCoverImage(r Resource) {
	p.write("SetResourceAsCoverImage", func(d *Document) bool {
		id := p.manifestID(r, d)
		if id == "" {
			return false
		}
		v3 := isVersion3(d.Package.Version)
		d.Metadata = slices.DeleteFunc(d.Metadata, isCoverMeta)
		if v3 {
			for _, me := range d.Manifest {
				if me.ID != id && me.HasProperty("cover-image") {
					removeProperty(d, me.ID, "cover-image")
				}
			}
		}
		d.Metadata = append(d.Metadata, MetaEntry{
			Name:       "meta",
			Attributes: Attrs{{Name: "name", Value: "cover"}, {Name: "content", Value: id}},
		})
		if v3 {
			addProperty(d, id, "cover-image")
		}
		return true
	})
}

// removeCoverMetaFor drops every cover meta pointing at id.
func (p *Package) removeCoverMetaFor(id string, d *Document) {
	if id == "" {
		return
	}
	d.Metadata = slices.DeleteFunc(d.Metadata, func(me MetaEntry) bool {
		return isCoverMeta(me) && me.Attributes.Value("content", "") == id
	})
}

// DetectCover finds the cover image. Methods are tried in priority order:
//  1. properties="cover-image" (EPUB 3.0)
//  2. meta name="cover" (EPUB 2.0)
//  3. guide type="cover" (matched to image manifest items)
//  4. filename pattern (basename contains "cover", case-insensitive, SVG excluded)
//
// Returns nil if no cover image is found.
func (p *Package) DetectCover() *CoverInfo {
	var info *CoverInfo
	p.read("DetectCover", func(d *Document) { info = detectCover(d) })
	return info
}

func detectCover(d *Document) *CoverInfo {
	found := func(me ManifestEntry, method string) *CoverInfo {
		return &CoverInfo{
			ManifestID:      me.ID,
			Href:            me.Href,
			MediaType:       me.MediaType,
			DetectionMethod: method,
		}
	}

	// Method 1: EPUB 3.0 - check for cover-image property
	for _, me := range d.Manifest {
		if me.HasProperty("cover-image") {
			return found(me, "properties")
		}
	}

	// Method 2: EPUB 2.0 - check for meta name="cover"
	if pos := coverMetaPos(d); pos > -1 {
		if i := d.IDPos(d.Metadata[pos].Attributes.Value("content", "")); i > -1 {
			return found(d.Manifest[i], "meta")
		}
	}

	// Method 3: guide type="cover" → match to image manifest items
	for _, ge := range d.Guide {
		if ge.Type != "cover" {
			continue
		}
		guideHref, _ := splitFragment(ge.Href)
		if i := d.HrefPos(guideHref); i > -1 && isRasterImage(d.Manifest[i].MediaType) {
			return found(d.Manifest[i], "guide")
		}
	}

	// Method 4: filename pattern
	for _, me := range d.Manifest {
		if !isRasterImage(me.MediaType) {
			continue
		}
		if strings.Contains(strings.ToLower(path.Base(me.Href)), "cover") {
			return found(me, "filename")
		}
	}
	return nil
}

// isRasterImage checks if a media type is a raster image (SVG excluded).
func isRasterImage(mediaType string) bool {
	return KindForMediaType(mediaType) == KindImage
}
