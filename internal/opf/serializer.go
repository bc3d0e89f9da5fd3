package opf

import (
	"strings"
)

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\n", "&#10;", "\r", "&#13;", "\t", "&#9;")
)

// Serialize writes the document as canonical package document text:
// declaration, package, metadata, manifest, spine, guide, bindings.
func Serialize(d *Document) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")

	b.WriteString("<package")
	writeAttr(&b, "version", d.Package.Version)
	if d.Package.UniqueIdentifier != "" {
		writeAttr(&b, "unique-identifier", d.Package.UniqueIdentifier)
	}
	pkgAttrs := d.Package.Attributes.Clone()
	if !pkgAttrs.Has("xmlns") {
		pkgAttrs = append(Attrs{{Name: "xmlns", Value: OPFNamespace}}, pkgAttrs...)
	}
	writeAttrs(&b, pkgAttrs)
	b.WriteString(">\n")

	writeMetadata(&b, d, pkgAttrs)

	b.WriteString("  <manifest>\n")
	for _, me := range d.Manifest {
		b.WriteString("    <item")
		writeAttr(&b, "id", me.ID)
		writeAttr(&b, "href", me.Href)
		writeAttr(&b, "media-type", me.MediaType)
		writeAttrs(&b, me.Attributes)
		b.WriteString("/>\n")
	}
	b.WriteString("  </manifest>\n")

	b.WriteString("  <spine")
	writeAttrs(&b, d.Package.Spine)
	b.WriteString(">\n")
	for _, se := range d.Spine {
		b.WriteString("    <itemref")
		writeAttr(&b, "idref", se.IDRef)
		writeAttrs(&b, se.Attributes)
		b.WriteString("/>\n")
	}
	b.WriteString("  </spine>\n")

	if len(d.Guide) > 0 {
		b.WriteString("  <guide>\n")
		for _, ge := range d.Guide {
			b.WriteString("    <reference")
			writeAttr(&b, "type", ge.Type)
			writeAttr(&b, "title", ge.Title)
			writeAttr(&b, "href", ge.Href)
			b.WriteString("/>\n")
		}
		b.WriteString("  </guide>\n")
	}

	if len(d.Bindings) > 0 {
		b.WriteString("  <bindings>\n")
		for _, be := range d.Bindings {
			b.WriteString("    <mediaType")
			writeAttr(&b, "media-type", be.MediaType)
			writeAttr(&b, "handler", be.Handler)
			b.WriteString("/>\n")
		}
		b.WriteString("  </bindings>\n")
	}

	b.WriteString("</package>\n")
	return b.String()
}

// MetadataXML returns only the serialized metadata element.
func MetadataXML(d *Document) string {
	var b strings.Builder
	writeMetadata(&b, d, d.Package.Attributes)
	return b.String()
}

func writeMetadata(b *strings.Builder, d *Document, pkgAttrs Attrs) {
	mdAttrs := d.Package.Metadata.Clone()
	needDC, needOPF := false, false
	for _, me := range d.Metadata {
		if me.IsDC() {
			needDC = true
		}
		if strings.HasPrefix(me.Name, "opf:") {
			needOPF = true
		}
		for _, a := range me.Attributes {
			if strings.HasPrefix(a.Name, "opf:") && !me.Attributes.Has("xmlns:opf") {
				needOPF = true
			}
		}
	}
	if needDC && !mdAttrs.Has("xmlns:dc") && !pkgAttrs.Has("xmlns:dc") {
		mdAttrs = append(Attrs{{Name: "xmlns:dc", Value: DCNamespace}}, mdAttrs...)
	}
	if needOPF && !mdAttrs.Has("xmlns:opf") && !pkgAttrs.Has("xmlns:opf") {
		mdAttrs.Set("xmlns:opf", OPFNamespace)
	}

	b.WriteString("  <metadata")
	writeAttrs(b, mdAttrs)
	b.WriteString(">\n")
	for _, me := range d.Metadata {
		b.WriteString("    <")
		b.WriteString(me.Name)
		writeAttrs(b, me.Attributes)
		if me.Content == "" {
			b.WriteString("/>\n")
			continue
		}
		b.WriteString(">")
		b.WriteString(textEscaper.Replace(me.Content))
		b.WriteString("</")
		b.WriteString(me.Name)
		b.WriteString(">\n")
	}
	b.WriteString("  </metadata>\n")
}

func writeAttrs(b *strings.Builder, attrs Attrs) {
	for _, a := range attrs {
		writeAttr(b, a.Name, a.Value)
	}
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(attrEscaper.Replace(value))
	b.WriteString(`"`)
}
