package opf

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	packageExpr  = xpath.MustCompile("/*[local-name()='package']")
	metadataExpr = xpath.MustCompile("*[local-name()='metadata']")
	manifestExpr = xpath.MustCompile("*[local-name()='manifest']")
	spineExpr    = xpath.MustCompile("*[local-name()='spine']")
	guideExpr    = xpath.MustCompile("*[local-name()='guide']")
	bindingsExpr = xpath.MustCompile("*[local-name()='bindings']")
)

// Parse turns well-formed package document text into a Document. Missing
// sections yield empty lists; only text that is not XML at all is an error.
func Parse(text string) (*Document, error) {
	root, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse package document: %w", err)
	}

	doc := &Document{}
	pkg := xmlquery.QuerySelector(root, packageExpr)
	if pkg == nil {
		doc.Reindex()
		return doc, nil
	}

	for _, a := range pkg.Attr {
		name := attrName(a)
		switch name {
		case "version":
			doc.Package.Version = a.Value
		case "unique-identifier":
			doc.Package.UniqueIdentifier = a.Value
		default:
			doc.Package.Attributes = append(doc.Package.Attributes, Attr{Name: name, Value: a.Value})
		}
	}

	if md := xmlquery.QuerySelector(pkg, metadataExpr); md != nil {
		doc.Package.Metadata = collectAttrs(md)
		parseMetadata(doc, md)
	}

	if mf := xmlquery.QuerySelector(pkg, manifestExpr); mf != nil {
		for _, n := range childElements(mf) {
			if n.Data != "item" {
				continue
			}
			me := ManifestEntry{}
			for _, a := range n.Attr {
				switch name := attrName(a); name {
				case "id":
					me.ID = a.Value
				case "href":
					me.Href = a.Value
				case "media-type":
					me.MediaType = a.Value
				default:
					me.Attributes = append(me.Attributes, Attr{Name: name, Value: a.Value})
				}
			}
			doc.Manifest = append(doc.Manifest, me)
		}
	}

	if sp := xmlquery.QuerySelector(pkg, spineExpr); sp != nil {
		doc.Package.Spine = collectAttrs(sp)
		for _, n := range childElements(sp) {
			if n.Data != "itemref" {
				continue
			}
			se := SpineEntry{}
			for _, a := range n.Attr {
				if name := attrName(a); name == "idref" {
					se.IDRef = a.Value
				} else {
					se.Attributes = append(se.Attributes, Attr{Name: name, Value: a.Value})
				}
			}
			doc.Spine = append(doc.Spine, se)
		}
	}

	if gd := xmlquery.QuerySelector(pkg, guideExpr); gd != nil {
		for _, n := range childElements(gd) {
			if n.Data != "reference" {
				continue
			}
			doc.Guide = append(doc.Guide, GuideEntry{
				Type:  n.SelectAttr("type"),
				Title: n.SelectAttr("title"),
				Href:  n.SelectAttr("href"),
			})
		}
	}

	if bd := xmlquery.QuerySelector(pkg, bindingsExpr); bd != nil {
		for _, n := range childElements(bd) {
			if n.Data != "mediaType" {
				continue
			}
			doc.Bindings = append(doc.Bindings, BindingEntry{
				MediaType: n.SelectAttr("media-type"),
				Handler:   n.SelectAttr("handler"),
			})
		}
	}

	doc.Reindex()
	return doc, nil
}

// parseMetadata flattens the metadata children into entries. The OPF 2
// dc-metadata and x-metadata wrappers are descended into.
func parseMetadata(doc *Document, md *xmlquery.Node) {
	for _, n := range childElements(md) {
		if n.Data == "dc-metadata" || n.Data == "x-metadata" {
			parseMetadata(doc, n)
			continue
		}
		content := n.InnerText()
		if strings.TrimSpace(content) == "" {
			content = ""
		}
		doc.Metadata = append(doc.Metadata, MetaEntry{
			Name:       elementName(n),
			Content:    content,
			Attributes: collectAttrs(n),
		})
	}
}

func childElements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

func collectAttrs(n *xmlquery.Node) Attrs {
	var out Attrs
	for _, a := range n.Attr {
		out = append(out, Attr{Name: attrName(a), Value: a.Value})
	}
	return out
}

// elementName canonicalizes Dublin Core elements to the dc: prefix and OPF
// elements to their bare local name, whatever prefix the source used.
func elementName(n *xmlquery.Node) string {
	switch n.NamespaceURI {
	case DCNamespace:
		return "dc:" + n.Data
	case OPFNamespace, "":
		return n.Data
	}
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func attrName(a xmlquery.Attr) string {
	switch {
	case a.Name.Space == "":
		return a.Name.Local
	case a.NamespaceURI == OPFNamespace && a.Name.Space != "xmlns":
		return "opf:" + a.Name.Local
	default:
		return a.Name.Space + ":" + a.Name.Local
	}
}
