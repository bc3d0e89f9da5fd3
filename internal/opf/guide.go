package opf

import (
	"slices"
	"strings"
)

// GuideInfo describes one guide reference with its target resolved to a
// book path.
type GuideInfo struct {
	Type     string
	Title    string
	BookPath string
	Fragment string
}

// guideTarget returns the href a guide entry for r and fragment carries.
func (p *Package) guideTarget(r Resource, fragment string) string {
	href := p.href(r)
	if fragment != "" {
		href += "#" + fragment
	}
	return href
}

// AddGuideSemanticCode gives r (optionally at fragment) the guide type code.
// Each target holds at most one code; when toggle is set and the target
// already holds code, the reference is removed instead. Codes that must be
// unique are taken away from any other target first. An empty code is
// ignored.
func (p *Package) AddGuideSemanticCode(r Resource, code, fragment string, toggle bool) {
	if code == "" {
		return
	}
	p.write("AddGuideSemanticCode", func(d *Document) bool {
		target := p.guideTarget(r, fragment)
		pos := slices.IndexFunc(d.Guide, func(ge GuideEntry) bool { return ge.Href == target })

		if pos > -1 && d.Guide[pos].Type == code {
			if !toggle {
				return false
			}
			d.Guide = slices.Delete(d.Guide, pos, pos+1)
			return true
		}

		if p.guideItems.IsUnique(code) {
			d.Guide = slices.DeleteFunc(d.Guide, func(ge GuideEntry) bool {
				return ge.Type == code && ge.Href != target
			})
			pos = slices.IndexFunc(d.Guide, func(ge GuideEntry) bool { return ge.Href == target })
		}

		title := p.guideItems.Title(code, p.primaryLanguage(d))
		if pos > -1 {
			d.Guide[pos].Type = code
			d.Guide[pos].Title = title
		} else {
			d.Guide = append(d.Guide, GuideEntry{Type: code, Title: title, Href: target})
		}
		return true
	})
}

// ClearSemanticCodesInGuide empties the guide.
func (p *Package) ClearSemanticCodesInGuide() {
	p.write("ClearSemanticCodesInGuide", func(d *Document) bool {
		if len(d.Guide) == 0 {
			return false
		}
		d.Guide = nil
		return true
	})
}

// GuideSemanticCodeForResource returns the guide code of r at fragment, or "".
func (p *Package) GuideSemanticCodeForResource(r Resource, fragment string) string {
	var code string
	p.read("GuideSemanticCodeForResource", func(d *Document) {
		target := p.guideTarget(r, fragment)
		for _, ge := range d.Guide {
			if ge.Href == target {
				code = ge.Type
				return
			}
		}
	})
	return code
}

// GuideSemanticNameForResource returns the display name of r's guide code,
// or "".
func (p *Package) GuideSemanticNameForResource(r Resource, fragment string) string {
	code := p.GuideSemanticCodeForResource(r, fragment)
	if code == "" {
		return ""
	}
	return p.guideItems.Name(code)
}

// SemanticCodesForPaths maps the book path of every guide target to its code.
// When a file carries several references the first one wins.
func (p *Package) SemanticCodesForPaths() map[string]string {
	out := map[string]string{}
	p.read("SemanticCodesForPaths", func(d *Document) {
		for _, ge := range d.Guide {
			base, _ := splitFragment(ge.Href)
			bp := p.entryBookPath(base)
			if _, ok := out[bp]; !ok {
				out[bp] = ge.Type
			}
		}
	})
	return out
}

// GuideSemanticNamesForPaths maps book paths to guide display names. The
// cover image is reported as "Cover" even when no guide entry points at it.
func (p *Package) GuideSemanticNamesForPaths() map[string]string {
	out := map[string]string{}
	p.read("GuideSemanticNamesForPaths", func(d *Document) {
		for _, ge := range d.Guide {
			base, _ := splitFragment(ge.Href)
			bp := p.entryBookPath(base)
			if _, ok := out[bp]; !ok {
				out[bp] = p.guideItems.Name(ge.Type)
			}
		}
		if pos := coverMetaPos(d); pos > -1 {
			if i := d.IDPos(d.Metadata[pos].Attributes.Value("content", "")); i > -1 {
				out[p.entryBookPath(d.Manifest[i].Href)] = p.guideItems.Name("cover")
			}
		}
	})
	return out
}

// AllGuideInfo returns every guide reference in document order.
func (p *Package) AllGuideInfo() []GuideInfo {
	var out []GuideInfo
	p.read("AllGuideInfo", func(d *Document) {
		for _, ge := range d.Guide {
			base, frag := splitFragment(ge.Href)
			out = append(out, GuideInfo{
				Type:     ge.Type,
				Title:    ge.Title,
				BookPath: p.entryBookPath(base),
				Fragment: frag,
			})
		}
	})
	return out
}

// UpdateGuideFragments rewrites fragments of guide hrefs. Keys are
// "bookpath#oldid", values the new id.
func (p *Package) UpdateGuideFragments(updates map[string]string) {
	p.write("UpdateGuideFragments", func(d *Document) bool {
		changed := false
		for i, ge := range d.Guide {
			base, frag := splitFragment(ge.Href)
			if frag == "" {
				continue
			}
			newID, ok := updates[p.entryBookPath(base)+"#"+frag]
			if !ok || newID == frag {
				continue
			}
			d.Guide[i].Href = base + "#" + newID
			changed = true
		}
		return changed
	})
}

// UpdateGuideAfterMerge points guide references at files merged into
// merged to the matching section of merged. sectionIDs maps each absorbed
// book path to the id of its section inside merged. References that already
// carry a fragment keep it; otherwise an empty id leaves the fragment off.
func (p *Package) UpdateGuideAfterMerge(merged Resource, sectionIDs map[string]string) {
	p.write("UpdateGuideAfterMerge", func(d *Document) bool {
		changed := false
		for i, ge := range d.Guide {
			base, frag := splitFragment(ge.Href)
			id, ok := sectionIDs[p.entryBookPath(base)]
			if !ok {
				continue
			}
			if frag != "" {
				id = frag
			}
			d.Guide[i].Href = p.guideTarget(merged, id)
			changed = true
		}
		return changed
	})
}

// removeAllGuideReferences drops every guide entry pointing into r,
// whatever the fragment.
func (p *Package) removeAllGuideReferences(r Resource, d *Document) {
	href := p.href(r)
	d.Guide = slices.DeleteFunc(d.Guide, func(ge GuideEntry) bool {
		base, _ := splitFragment(ge.Href)
		return base == href
	})
}

// primaryLanguage returns the first dc:language or the settings default.
func (p *Package) primaryLanguage(d *Document) string {
	for _, me := range d.Metadata {
		if me.Name == "dc:language" && strings.TrimSpace(me.Content) != "" {
			return strings.TrimSpace(me.Content)
		}
	}
	return p.settings.DefaultMetadataLang()
}
