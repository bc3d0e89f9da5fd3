package opf

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var pkgVersionRe = regexp.MustCompile(`(?i)<\s*package[^>]*version\s*=\s*["']([^'"]*)['"][^>]*>`)

// IdentifierPolicy decides what happens to the package's unique-identifier
// attribute when a new dc:identifier is written.
type IdentifierPolicy int

const (
	// IdentifierAppend appends the new identifier and leaves
	// unique-identifier pointing where it was.
	IdentifierAppend IdentifierPolicy = iota
	// IdentifierRepoint gives the new identifier an id and points
	// unique-identifier at it when the current main identifier is not a UUID.
	IdentifierRepoint
)

// Package owns the canonical text of one package document and is the only
// way to read or change it. Every call parses the text afresh under the
// package lock, so no parsed state outlives a call.
type Package struct {
	mu       sync.RWMutex
	text     string
	bookPath string
	version  string
	navPath  string
	warned   bool

	logger     *slog.Logger
	normalizer Normalizer
	nav        NavProcessor
	settings   Settings
	mediaTypes *MediaTypes
	guideItems *GuideItems
	content    fs.FS
	now        func() time.Time
	newUUID    func() string
	warn       Warner
	metrics    *Metrics
	idPolicy   IdentifierPolicy
}

// Option configures a Package.
type Option func(*Package)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Package) { p.logger = l } }

// WithNormalizer sets the XML cleaner run before every parse.
func WithNormalizer(n Normalizer) Option { return func(p *Package) { p.normalizer = n } }

// WithNavProcessor sets the navigation document collaborator.
func WithNavProcessor(n NavProcessor) Option { return func(p *Package) { p.nav = n } }

// WithSettings sets the user defaults provider.
func WithSettings(s Settings) Option { return func(p *Package) { p.settings = s } }

// WithMediaTypes replaces the media type service.
func WithMediaTypes(m *MediaTypes) Option { return func(p *Package) { p.mediaTypes = m } }

// WithGuideItems replaces the guide vocabulary.
func WithGuideItems(g *GuideItems) Option { return func(p *Package) { p.guideItems = g } }

// WithContent gives access to resource bytes, keyed by book path, for media
// type sniffing.
func WithContent(fsys fs.FS) Option { return func(p *Package) { p.content = fsys } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(p *Package) { p.now = now } }

// WithUUIDGenerator overrides uuid.NewString.
func WithUUIDGenerator(gen func() string) Option { return func(p *Package) { p.newUUID = gen } }

// WithWarner sets the one-time version warning sink.
func WithWarner(w Warner) Option { return func(p *Package) { p.warn = w } }

// WithMetrics enables transaction metrics.
func WithMetrics(m *Metrics) Option { return func(p *Package) { p.metrics = m } }

// WithIdentifierPolicy selects how new identifiers interact with unique-identifier.
func WithIdentifierPolicy(policy IdentifierPolicy) Option {
	return func(p *Package) { p.idPolicy = policy }
}

// New creates a package document at bookPath (e.g. "OEBPS/content.opf")
// filled with the blank template for version. An empty version uses the
// settings default.
func New(bookPath, version string, opts ...Option) *Package {
	p := &Package{
		bookPath:   bookPath,
		logger:     slog.Default(),
		normalizer: TrimNormalizer,
		settings:   StaticSettings{},
		mediaTypes: DefaultMediaTypes(),
		guideItems: DefaultGuideItems(),
		now:        time.Now,
		newUUID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.warn == nil {
		p.warn = func(title, detail string) {
			p.logger.Warn(title, "detail", detail)
		}
	}
	if version == "" {
		version = p.settings.DefaultVersion()
	}
	p.version = version
	p.text = p.forceVersion(p.DefaultText(version))
	return p
}

// Open wraps existing package document text, tracking the version the text
// declares.
func Open(bookPath, text string, opts ...Option) *Package {
	p := New(bookPath, DetectVersion(text), opts...)
	p.SetText(text)
	return p
}

// DefaultText renders a fresh blank package document for version.
func (p *Package) DefaultText(version string) string {
	return DefaultText(version, p.newUUID(), p.settings.DefaultMetadataLang(), p.timestamp())
}

func (p *Package) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}

// BookPath returns the package document's own path in the book.
func (p *Package) BookPath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bookPath
}

// SetBookPath records that the package document itself was renamed or moved.
func (p *Package) SetBookPath(bookPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bookPath = bookPath
}

// Folder returns the folder holding the package document, "" at the root.
func (p *Package) Folder() string {
	return startingDir(p.BookPath())
}

// EpubVersion returns the version tracked for this book.
func (p *Package) EpubVersion() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

// SetEpubVersion changes the tracked version. The text is not touched.
func (p *Package) SetEpubVersion(version string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.version = version
}

// Text returns the current canonical text.
func (p *Package) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// SetText replaces the whole text, forcing its package version back to the
// tracked version.
func (p *Package) SetText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = p.validatePackageVersion(text)
}

// Load reads the text from src. Any failure is reported as ErrCannotOpen.
func (p *Package) Load(ctx context.Context, src TextSource) error {
	text, err := src.ReadText(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCannotOpen, err)
	}
	p.SetText(text)
	return nil
}

// Save normalizes the text and writes it to dst.
func (p *Package) Save(ctx context.Context, dst TextSink) error {
	if dst == nil {
		return ErrNoSink
	}
	p.mu.Lock()
	text := p.validatePackageVersion(p.normalizer.Normalize(p.text, PackageMediaType))
	p.text = text
	p.mu.Unlock()
	if err := dst.WriteText(ctx, text); err != nil {
		return fmt.Errorf("failed to save package document: %w", err)
	}
	return nil
}

// PackageVersion reads the version attribute straight from the text,
// defaulting to "2.0".
func (p *Package) PackageVersion() string {
	return DetectVersion(p.Text())
}

// DetectVersion extracts the package version attribute from raw text,
// defaulting to "2.0".
func DetectVersion(text string) string {
	if m := pkgVersionRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "2.0"
}

// validatePackageVersion must be called with the write lock held.
func (p *Package) validatePackageVersion(source string) string {
	loc := pkgVersionRe.FindStringSubmatchIndex(source)
	if loc == nil {
		return source
	}
	version := source[loc[2]:loc[3]]
	if version == p.version {
		return source
	}
	if !p.warned && !strings.HasPrefix(version, "1") {
		p.warn("Changing package version is not supported",
			"Use an appropriate conversion tool to make the initial conversion")
		p.warned = true
	}
	return source[:loc[2]] + p.version + source[loc[3]:]
}

// forceVersion rewrites the version attribute without warning.
func (p *Package) forceVersion(source string) string {
	loc := pkgVersionRe.FindStringSubmatchIndex(source)
	if loc == nil {
		return source
	}
	return source[:loc[2]] + p.version + source[loc[3]:]
}

// read runs fn against a freshly parsed document under the read lock.
func (p *Package) read(op string, fn func(d *Document)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	start := time.Now()
	d, ok := p.parseLocked(op)
	if !ok {
		return
	}
	fn(d)
	p.metrics.observe(op, "read", start)
}

// write runs fn under the write lock and stores the re-serialized document
// when fn reports a change.
func (p *Package) write(op string, fn func(d *Document) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := time.Now()
	d, ok := p.parseLocked(op)
	if !ok {
		return
	}
	if fn(d) {
		p.text = Serialize(d)
	}
	p.metrics.observe(op, "write", start)
}

func (p *Package) parseLocked(op string) (*Document, bool) {
	source := p.normalizer.Normalize(p.text, PackageMediaType)
	d, err := Parse(source)
	if err != nil {
		p.logger.Warn("package document skipped", "op", op, "error", err)
		p.metrics.failed(op)
		return nil, false
	}
	return d, true
}

// Document returns a snapshot of the parsed document. The copy is detached:
// changing it does not change the package.
func (p *Package) Document() *Document {
	var out *Document
	p.read("Document", func(d *Document) { out = d })
	return out
}

// href returns the encoded manifest href of r; callers hold a lock.
func (p *Package) href(r Resource) string {
	return EncodeHref(relativePath(p.bookPath, r.BookPath))
}

// entryBookPath resolves a manifest or guide href to a book path; callers
// hold a lock.
func (p *Package) entryBookPath(href string) string {
	return bookPath(DecodeHref(href), startingDir(p.bookPath))
}

// manifestID returns the id of r's manifest entry or "".
func (p *Package) manifestID(r Resource, d *Document) string {
	id := d.ManifestIDForHref(p.href(r))
	if id == "" {
		p.logger.Debug("no manifest entry for resource", "path", r.BookPath)
	}
	return id
}

// uniqueID returns preferred unless it is taken, in which case a random id.
func (p *Package) uniqueID(preferred string, d *Document) string {
	if preferred != "" && !d.HasID(preferred) {
		return preferred
	}
	return "x" + p.newUUID()
}

func isVersion3(v string) bool { return strings.HasPrefix(v, "3") }
