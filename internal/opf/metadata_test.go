package opf

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEnsureUUIDIdentifierPresent_Append(t *testing.T) {
	p := openTestPackage(t, sampleV2)

	p.EnsureUUIDIdentifierPresent()
	p.EnsureUUIDIdentifierPresent()

	ids := p.DCMetadataValues("identifier")
	want := []string{"9780000000002", "urn:uuid:" + fixedUUID}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("identifiers = %v, want %v", ids, want)
	}
	if got := p.MainIdentifierValue(); got != "9780000000002" {
		t.Errorf("MainIdentifierValue() = %q, want %q", got, "9780000000002")
	}
	if got := p.UUIDIdentifierValue(); got != fixedUUID {
		t.Errorf("UUIDIdentifierValue() = %q, want %q", got, fixedUUID)
	}

	for _, me := range p.DCMetadata() {
		if me.Content == "urn:uuid:"+fixedUUID {
			if got := me.Attributes.Value("opf:scheme", ""); got != "UUID" {
				t.Errorf("opf:scheme = %q, want %q", got, "UUID")
			}
		}
	}
}

func TestEnsureUUIDIdentifierPresent_Repoint(t *testing.T) {
	p := openTestPackage(t, sampleV2, WithIdentifierPolicy(IdentifierRepoint))

	p.EnsureUUIDIdentifierPresent()

	if got := p.MainIdentifierValue(); got != "urn:uuid:"+fixedUUID {
		t.Errorf("MainIdentifierValue() = %q, want %q", got, "urn:uuid:"+fixedUUID)
	}
	if got := p.Document().Package.UniqueIdentifier; got != "x"+fixedUUID {
		t.Errorf("unique-identifier = %q, want %q", got, "x"+fixedUUID)
	}
}

func TestEnsureUUIDIdentifierPresent_NoMainIdentifier(t *testing.T) {
	text := `<package version="3.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Untitled</dc:title>
  </metadata>
  <manifest/>
  <spine/>
</package>`
	p := openTestPackage(t, text)

	p.EnsureUUIDIdentifierPresent()

	d := p.Document()
	if d.Package.UniqueIdentifier != "BookId" {
		t.Errorf("unique-identifier = %q, want %q", d.Package.UniqueIdentifier, "BookId")
	}
	if got := p.MainIdentifierValue(); got != "urn:uuid:"+fixedUUID {
		t.Errorf("MainIdentifierValue() = %q, want %q", got, "urn:uuid:"+fixedUUID)
	}
	if strings.Contains(p.Text(), "opf:scheme") {
		t.Errorf("version 3 identifier carries opf:scheme:\n%s", p.Text())
	}
}

func TestEnsureUUIDIdentifierPresent_KeepsExisting(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	before := p.Text()

	p.EnsureUUIDIdentifierPresent()

	if p.Text() != before {
		t.Errorf("text changed although a UUID identifier exists")
	}
	if got := p.UUIDIdentifierValue(); got != "0b8e5f6e-7d4a-4c1b-9a57-2f3c8d9e1a42" {
		t.Errorf("UUIDIdentifierValue() = %q", got)
	}
}

func TestParseUUIDIdentifier(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"urn:uuid:0b8e5f6e-7d4a-4c1b-9a57-2f3c8d9e1a42", true},
		{"URN:UUID:0b8e5f6e-7d4a-4c1b-9a57-2f3c8d9e1a42", true},
		{"0b8e5f6e-7d4a-4c1b-9a57-2f3c8d9e1a42", true},
		{"urn:uuid:00000000-0000-0000-0000-000000000000", false},
		{"urn:isbn:9780000000002", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, got := parseUUIDIdentifier(tt.value); got != tt.want {
			t.Errorf("parseUUIDIdentifier(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestAddModificationDateMeta_Version3(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("CET", 3600))
	p := openTestPackage(t, sampleV3, WithClock(func() time.Time { return now }))

	got := p.AddModificationDateMeta()
	p.AddModificationDateMeta()

	if got != "2025-03-04T04:06:07Z" {
		t.Errorf("AddModificationDateMeta() = %q, want %q", got, "2025-03-04T04:06:07Z")
	}
	var values []string
	for _, me := range p.Document().Metadata {
		if me.Attributes.Value("property", "") == "dcterms:modified" {
			values = append(values, me.Content)
		}
	}
	if !reflect.DeepEqual(values, []string{"2025-03-04T04:06:07Z"}) {
		t.Errorf("dcterms:modified values = %v", values)
	}
}

func TestAddModificationDateMeta_Version2(t *testing.T) {
	now := time.Date(2025, 11, 9, 23, 0, 0, 0, time.UTC)
	p := openTestPackage(t, sampleV2, WithClock(func() time.Time { return now }))

	got := p.AddModificationDateMeta()

	if got != "2025-11-09" {
		t.Errorf("AddModificationDateMeta() = %q, want %q", got, "2025-11-09")
	}
	if !strings.Contains(p.Text(), `<dc:date opf:event="modification">2025-11-09</dc:date>`) {
		t.Errorf("Text() missing modification date:\n%s", p.Text())
	}
}

func TestSetDCMetadata_KeepsMainIdentifier(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	p.SetDCMetadata([]MetaEntry{
		{Name: "dc:title", Content: "New Title"},
		{Name: "dc:creator", Content: "Ada", Attributes: Attrs{{Name: "id", Value: "creator01"}}},
		{Name: "meta", Content: "ignored"},
	})

	var names []string
	for _, me := range p.DCMetadata() {
		names = append(names, me.Name)
	}
	want := []string{"dc:identifier", "dc:title", "dc:creator"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("DC names = %v, want %v", names, want)
	}
	if got := p.PrimaryBookTitle(); got != "New Title" {
		t.Errorf("PrimaryBookTitle() = %q, want %q", got, "New Title")
	}
	if got := p.PrimaryBookLanguage(); got != "en" {
		t.Errorf("PrimaryBookLanguage() = %q, want default %q", got, "en")
	}
	if got := p.MainIdentifierValue(); got == "" {
		t.Errorf("MainIdentifierValue() empty after SetDCMetadata")
	}
	if strings.Contains(p.Text(), "ignored") {
		t.Errorf("non Dublin Core entry was written")
	}
}

func TestStampToolVersion(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	p.StampToolVersion("opfkit version", "0.1.0")
	p.StampToolVersion("opfkit version", "0.2.0")

	var stamps []string
	for _, me := range p.Document().Metadata {
		if me.Attributes.Value("name", "") == "opfkit version" {
			stamps = append(stamps, me.Attributes.Value("content", ""))
		}
	}
	if !reflect.DeepEqual(stamps, []string{"0.2.0"}) {
		t.Errorf("stamps = %v, want [0.2.0]", stamps)
	}
}

func TestMediaOverlayActiveClassSelectors(t *testing.T) {
	text := strings.Replace(sampleV3, `<meta property="dcterms:modified">`,
		`<meta property="media:playback-active-class">playing</meta>
    <meta property="media:active-class">active</meta>
    <meta property="dcterms:modified">`, 1)
	p := openTestPackage(t, text)

	got := p.MediaOverlayActiveClassSelectors()
	want := []string{".active", ".playing"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MediaOverlayActiveClassSelectors() = %v, want %v", got, want)
	}
}

func TestMetadataXML(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	out := p.MetadataXML()
	if !strings.HasPrefix(out, "  <metadata") || !strings.Contains(out, "<dc:title>Sample Book</dc:title>") {
		t.Errorf("MetadataXML() = %s", out)
	}
	if strings.Contains(out, "<manifest>") {
		t.Errorf("MetadataXML() includes the manifest")
	}
}

func TestNavResource(t *testing.T) {
	p := openTestPackage(t, sampleV3)

	nav, ok := p.NavResource()
	if !ok || nav.BookPath != "OEBPS/Text/nav.xhtml" {
		t.Fatalf("NavResource() = %+v, %v", nav, ok)
	}

	p.SetNavResource(res("Text/b.xhtml"))

	if manifestEntry(t, p, "nav").HasProperty("nav") {
		t.Errorf("old nav document kept the nav property")
	}
	if !manifestEntry(t, p, "b.xhtml").HasProperty("nav") {
		t.Errorf("b.xhtml missing nav property")
	}
	nav, ok = p.NavResource()
	if !ok || nav.BookPath != "OEBPS/Text/b.xhtml" || nav.Kind != KindHTML {
		t.Errorf("NavResource() = %+v, %v", nav, ok)
	}
}
