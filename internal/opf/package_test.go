package opf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const fixedUUID = "11111111-2222-4333-8444-555555555555"

const sampleV3 = `<?xml version="1.0" encoding="utf-8"?>
<package version="3.0" unique-identifier="BookId" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="BookId">urn:uuid:0b8e5f6e-7d4a-4c1b-9a57-2f3c8d9e1a42</dc:identifier>
    <dc:title>Sample Book</dc:title>
    <dc:language>en</dc:language>
    <meta property="dcterms:modified">2024-01-01T00:00:00Z</meta>
  </metadata>
  <manifest>
    <item id="nav" href="Text/nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="a.xhtml" href="Text/a.xhtml" media-type="application/xhtml+xml"/>
    <item id="b.xhtml" href="Text/b.xhtml" media-type="application/xhtml+xml"/>
    <item id="c.xhtml" href="Text/c.xhtml" media-type="application/xhtml+xml"/>
    <item id="d.xhtml" href="Text/d.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover.jpg" href="Images/cover.jpg" media-type="image/jpeg"/>
    <item id="photo.png" href="Images/photo.png" media-type="image/png"/>
    <item id="style.css" href="Styles/style.css" media-type="text/css"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="a.xhtml"/>
    <itemref idref="b.xhtml"/>
    <itemref idref="c.xhtml"/>
    <itemref idref="d.xhtml"/>
  </spine>
  <guide>
    <reference type="text" title="Text" href="Text/a.xhtml"/>
  </guide>
</package>`

const sampleV2 = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="BookId">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="BookId" opf:scheme="ISBN">9780000000002</dc:identifier>
    <dc:title>Old Book</dc:title>
    <dc:language>de</dc:language>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch1" href="Text/ch1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
  </spine>
</package>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestPackage opens text as OEBPS/content.opf with a silent logger and
// a fixed UUID generator.
func openTestPackage(t *testing.T, text string, opts ...Option) *Package {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithUUIDGenerator(func() string { return fixedUUID }),
	}
	return Open("OEBPS/content.opf", text, append(base, opts...)...)
}

// res builds a resource below the OEBPS folder.
func res(rel string) Resource {
	return NewResource("OEBPS/"+rel, "")
}

func spineIDs(t *testing.T, p *Package) []string {
	t.Helper()
	var ids []string
	for _, se := range p.Document().Spine {
		ids = append(ids, se.IDRef)
	}
	return ids
}

func manifestEntry(t *testing.T, p *Package, id string) ManifestEntry {
	t.Helper()
	d := p.Document()
	pos := d.IDPos(id)
	if pos < 0 {
		t.Fatalf("manifest entry %q not found", id)
	}
	return d.Manifest[pos]
}

type memText struct {
	text string
	err  error
}

func (m *memText) ReadText(context.Context) (string, error) { return m.text, m.err }

func (m *memText) WriteText(_ context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.text = text
	return nil
}

func TestNew_Version3Template(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	p := New("OEBPS/content.opf", "",
		WithLogger(quietLogger()),
		WithSettings(StaticSettings{Lang: "fr"}),
		WithClock(func() time.Time { return now }),
		WithUUIDGenerator(func() string { return fixedUUID }),
	)

	if got := p.EpubVersion(); got != "3.0" {
		t.Errorf("EpubVersion() = %q, want %q", got, "3.0")
	}
	if got := p.PackageVersion(); got != "3.0" {
		t.Errorf("PackageVersion() = %q, want %q", got, "3.0")
	}
	if got := p.MainIdentifierValue(); got != "urn:uuid:"+fixedUUID {
		t.Errorf("MainIdentifierValue() = %q, want %q", got, "urn:uuid:"+fixedUUID)
	}
	if got := p.PrimaryBookLanguage(); got != "fr" {
		t.Errorf("PrimaryBookLanguage() = %q, want %q", got, "fr")
	}
	if got := p.PrimaryBookTitle(); got != "[Main title here]" {
		t.Errorf("PrimaryBookTitle() = %q, want %q", got, "[Main title here]")
	}
	if !strings.Contains(p.Text(), "2025-03-04T05:06:07Z") {
		t.Errorf("Text() missing modification timestamp:\n%s", p.Text())
	}
	if got := p.Folder(); got != "OEBPS" {
		t.Errorf("Folder() = %q, want %q", got, "OEBPS")
	}
}

func TestNew_Version2Template(t *testing.T) {
	var warnings int
	p := New("content.opf", "2.0",
		WithLogger(quietLogger()),
		WithWarner(func(string, string) { warnings++ }),
	)

	if got := p.PackageVersion(); got != "2.0" {
		t.Errorf("PackageVersion() = %q, want %q", got, "2.0")
	}
	if got := p.PrimaryBookTitle(); got != "[Title here]" {
		t.Errorf("PrimaryBookTitle() = %q, want %q", got, "[Title here]")
	}
	if got := p.Folder(); got != "" {
		t.Errorf("Folder() = %q, want empty", got)
	}
	if warnings != 0 {
		t.Errorf("warnings = %d, want 0", warnings)
	}
}

func TestSetText_ForcesVersionAndWarnsOnce(t *testing.T) {
	var warnings int
	p := openTestPackage(t, sampleV3, WithWarner(func(string, string) { warnings++ }))

	changed := strings.Replace(sampleV3, `version="3.0"`, `version="2.0"`, 1)
	p.SetText(changed)
	p.SetText(changed)

	if warnings != 1 {
		t.Errorf("warnings = %d, want 1", warnings)
	}
	if got := p.PackageVersion(); got != "3.0" {
		t.Errorf("PackageVersion() = %q, want %q", got, "3.0")
	}
	if got := p.EpubVersion(); got != "3.0" {
		t.Errorf("EpubVersion() = %q, want %q", got, "3.0")
	}
}

func TestSetText_Version1IsSilent(t *testing.T) {
	var warnings int
	p := openTestPackage(t, sampleV3, WithWarner(func(string, string) { warnings++ }))

	p.SetText(strings.Replace(sampleV3, `version="3.0"`, `version="1.0"`, 1))

	if warnings != 0 {
		t.Errorf("warnings = %d, want 0", warnings)
	}
	if got := p.PackageVersion(); got != "3.0" {
		t.Errorf("PackageVersion() = %q, want %q", got, "3.0")
	}
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"version 3", sampleV3, "3.0"},
		{"version 2", sampleV2, "2.0"},
		{"single quotes", `<package version='3.1' xmlns="http://www.idpf.org/2007/opf">`, "3.1"},
		{"missing", `<foo/>`, "2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectVersion(tt.text); got != tt.want {
				t.Errorf("DetectVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_WrapsReadErrors(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	readErr := errors.New("disk on fire")

	err := p.Load(context.Background(), &memText{err: readErr})
	if !errors.Is(err, ErrCannotOpen) {
		t.Errorf("Load() error = %v, want ErrCannotOpen", err)
	}
	if !errors.Is(err, readErr) {
		t.Errorf("Load() error = %v, want wrapped read error", err)
	}
	if got := p.PrimaryBookTitle(); got != "Sample Book" {
		t.Errorf("PrimaryBookTitle() after failed load = %q, want %q", got, "Sample Book")
	}
}

func TestLoadSave(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	src := &memText{text: "\ufeff" + strings.Replace(sampleV3, "Sample Book", "Loaded Book", 1) + "\n\n"}

	if err := p.Load(context.Background(), src); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := p.PrimaryBookTitle(); got != "Loaded Book" {
		t.Errorf("PrimaryBookTitle() = %q, want %q", got, "Loaded Book")
	}

	dst := &memText{}
	if err := p.Save(context.Background(), dst); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if strings.HasPrefix(dst.text, "\ufeff") || strings.HasSuffix(dst.text, "\n") {
		t.Errorf("Save() did not normalize text: %q", dst.text[:20])
	}

	if err := p.Save(context.Background(), nil); !errors.Is(err, ErrNoSink) {
		t.Errorf("Save(nil) error = %v, want ErrNoSink", err)
	}
}

func TestDocument_IsDetached(t *testing.T) {
	p := openTestPackage(t, sampleV3)
	d := p.Document()
	d.Manifest = nil
	d.Spine = nil

	if got := len(p.Document().Manifest); got != 9 {
		t.Errorf("len(Manifest) = %d, want 9", got)
	}
}

func TestMetrics_CountTransactions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := openTestPackage(t, sampleV3, WithMetrics(m))

	p.MoveReadingOrder(3, 0)
	p.MoveReadingOrder(0, 2)
	_ = p.ReadingOrder(res("Text/a.xhtml"))

	if got := testutil.ToFloat64(m.Transactions.WithLabelValues("MoveReadingOrder", "write")); got != 2 {
		t.Errorf("MoveReadingOrder writes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Transactions.WithLabelValues("ReadingOrder", "read")); got != 1 {
		t.Errorf("ReadingOrder reads = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.Duration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
}
