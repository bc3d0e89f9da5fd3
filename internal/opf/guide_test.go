package opf

import (
	"reflect"
	"testing"
)

func countGuideType(d *Document, code string) int {
	n := 0
	for _, ge := range d.Guide {
		if ge.Type == code {
			n++
		}
	}
	return n
}

func TestAddGuideSemanticCode_UniqueCodeMoves(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	p.AddGuideSemanticCode(res("Text/b.xhtml"), "introduction", "", false)
	p.AddGuideSemanticCode(res("Text/c.xhtml"), "introduction", "", false)

	d := p.Document()
	if got := countGuideType(d, "introduction"); got != 1 {
		t.Fatalf("introduction entries = %d, want 1", got)
	}
	if got := p.GuideSemanticCodeForResource(res("Text/c.xhtml"), ""); got != "introduction" {
		t.Errorf("code for c.xhtml = %q, want %q", got, "introduction")
	}
	if got := p.GuideSemanticCodeForResource(res("Text/b.xhtml"), ""); got != "" {
		t.Errorf("code for b.xhtml = %q, want empty", got)
	}
	if got := p.GuideSemanticCodeForResource(res("Text/a.xhtml"), ""); got != "text" {
		t.Errorf("code for a.xhtml = %q, want %q", got, "text")
	}
}

func TestAddGuideSemanticCode_ReplacesCodeOnTarget(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	p.AddGuideSemanticCode(res("Text/a.xhtml"), "toc", "", false)

	d := p.Document()
	if len(d.Guide) != 1 {
		t.Fatalf("len(Guide) = %d, want 1", len(d.Guide))
	}
	if d.Guide[0].Type != "toc" || d.Guide[0].Title != "Table Of Contents" {
		t.Errorf("Guide[0] = %+v, want toc/Table Of Contents", d.Guide[0])
	}
}

func TestAddGuideSemanticCode_Toggle(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	p.AddGuideSemanticCode(res("Text/a.xhtml"), "text", "", false)
	if got := len(p.Document().Guide); got != 1 {
		t.Errorf("len(Guide) after re-adding = %d, want 1", got)
	}

	p.AddGuideSemanticCode(res("Text/a.xhtml"), "text", "", true)
	if got := len(p.Document().Guide); got != 0 {
		t.Errorf("len(Guide) after toggle = %d, want 0", got)
	}
}

func TestAddGuideSemanticCode_FragmentsAndOtherCodes(t *testing.T) {
	p := openTestPackage(t, sampleV2)
	ch1 := res("Text/ch1.xhtml")

	p.AddGuideSemanticCode(ch1, "other.note", "n1", false)
	p.AddGuideSemanticCode(ch1, "other.note", "n2", false)
	p.AddGuideSemanticCode(ch1, "toc", "", false)

	d := p.Document()
	if got := countGuideType(d, "other.note"); got != 2 {
		t.Errorf("other.note entries = %d, want 2", got)
	}
	if got := p.GuideSemanticCodeForResource(ch1, "n2"); got != "other.note" {
		t.Errorf("code for ch1#n2 = %q, want %q", got, "other.note")
	}
	if got := p.GuideSemanticNameForResource(ch1, ""); got != "Table Of Contents" {
		t.Errorf("name for ch1 = %q, want %q", got, "Table Of Contents")
	}
	for _, ge := range d.Guide {
		if ge.Type == "toc" && ge.Title != "Inhaltsverzeichnis" {
			t.Errorf("toc title = %q, want %q", ge.Title, "Inhaltsverzeichnis")
		}
	}
}

func TestGuideQueries(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	p.AddGuideSemanticCode(res("Text/b.xhtml"), "toc", "contents", false)
	p.SetResourceAsCoverImage(res("Images/cover.jpg"))

	codes := p.SemanticCodesForPaths()
	wantCodes := map[string]string{"OEBPS/Text/a.xhtml": "text", "OEBPS/Text/b.xhtml": "toc"}
	if !reflect.DeepEqual(codes, wantCodes) {
		t.Errorf("SemanticCodesForPaths() = %v, want %v", codes, wantCodes)
	}

	names := p.GuideSemanticNamesForPaths()
	if got := names["OEBPS/Images/cover.jpg"]; got != "Cover" {
		t.Errorf("name for cover image = %q, want %q", got, "Cover")
	}
	if got := names["OEBPS/Text/b.xhtml"]; got != "Table Of Contents" {
		t.Errorf("name for b.xhtml = %q, want %q", got, "Table Of Contents")
	}

	info := p.AllGuideInfo()
	if len(info) != 2 {
		t.Fatalf("len(AllGuideInfo()) = %d, want 2", len(info))
	}
	want := GuideInfo{Type: "toc", Title: "Table Of Contents", BookPath: "OEBPS/Text/b.xhtml", Fragment: "contents"}
	if info[1] != want {
		t.Errorf("AllGuideInfo()[1] = %+v, want %+v", info[1], want)
	}
}

func TestClearSemanticCodesInGuide(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	p.ClearSemanticCodesInGuide()

	if got := len(p.Document().Guide); got != 0 {
		t.Errorf("len(Guide) = %d, want 0", got)
	}
}

func TestUpdateGuideFragments(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	p.AddGuideSemanticCode(res("Text/b.xhtml"), "toc", "old", false)

	p.UpdateGuideFragments(map[string]string{"OEBPS/Text/b.xhtml#old": "new"})

	if got := p.GuideSemanticCodeForResource(res("Text/b.xhtml"), "new"); got != "toc" {
		t.Errorf("code for b.xhtml#new = %q, want %q", got, "toc")
	}
}

func TestUpdateGuideAfterMerge(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	p.AddGuideSemanticCode(res("Text/b.xhtml"), "toc", "", false)
	p.AddGuideSemanticCode(res("Text/c.xhtml"), "loi", "figs", false)

	p.UpdateGuideAfterMerge(res("Text/a.xhtml"), map[string]string{
		"OEBPS/Text/b.xhtml": "sec-b",
		"OEBPS/Text/c.xhtml": "",
	})

	var hrefs []string
	for _, ge := range p.Document().Guide {
		hrefs = append(hrefs, ge.Href)
	}
	want := []string{"Text/a.xhtml", "Text/a.xhtml#sec-b", "Text/a.xhtml#figs"}
	if !reflect.DeepEqual(hrefs, want) {
		t.Errorf("guide hrefs = %v, want %v", hrefs, want)
	}
}

func TestUpdateGuideAfterMerge_KeepsFragment(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	p.AddGuideSemanticCode(res("Text/b.xhtml"), "loi", "figs", false)

	p.UpdateGuideAfterMerge(res("Text/a.xhtml"), map[string]string{
		"OEBPS/Text/b.xhtml": "sec-b",
	})

	if got := p.GuideSemanticCodeForResource(res("Text/a.xhtml"), "figs"); got != "loi" {
		t.Errorf("code for a.xhtml#figs = %q, want %q", got, "loi")
	}
	if got := p.GuideSemanticCodeForResource(res("Text/a.xhtml"), "sec-b"); got != "" {
		t.Errorf("code for a.xhtml#sec-b = %q, want none", got)
	}
}

func TestAddGuideSemanticCode_EmptyCode(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	before := p.Text()

	p.AddGuideSemanticCode(res("Text/a.xhtml"), "", "", false)
	p.AddGuideSemanticCode(res("Text/b.xhtml"), "", "", true)

	if p.Text() != before {
		t.Errorf("empty code changed the document:\n%s", p.Text())
	}
	if got := len(p.Document().Guide); got != 1 {
		t.Errorf("guide holds %d references, want 1", got)
	}
}
