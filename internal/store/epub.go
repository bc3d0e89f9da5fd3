package store

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
)

var rootfileExpr = xpath.MustCompile("//*[local-name()='rootfile']")

// EPUB reads the package document out of an EPUB container. It is read
// only: the container is never rewritten.
type EPUB struct {
	zipReader *zip.ReadCloser
	files     map[string]*zip.File
	opfPath   string
}

// OpenEPUB opens an EPUB file and validates its structure.
func OpenEPUB(path string) (*EPUB, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB: %w", err)
	}

	e := &EPUB{
		zipReader: zr,
		files:     make(map[string]*zip.File),
	}
	for _, f := range zr.File {
		e.files[normalizePath(f.Name)] = f
	}

	if err := e.validateMimetype(); err != nil {
		zr.Close()
		return nil, err
	}
	if err := e.parseContainer(); err != nil {
		zr.Close()
		return nil, err
	}
	return e, nil
}

// Close closes the EPUB.
func (e *EPUB) Close() error {
	return e.zipReader.Close()
}

// PackagePath returns the book path of the package document.
func (e *EPUB) PackagePath() string {
	return e.opfPath
}

// FS exposes the container contents keyed by book path.
func (e *EPUB) FS() fs.FS {
	return &e.zipReader.Reader
}

// ReadText returns the package document text.
func (e *EPUB) ReadText(context.Context) (string, error) {
	data, err := e.readFile(e.opfPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (e *EPUB) readFile(path string) ([]byte, error) {
	path = normalizePath(path)
	f, ok := e.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// validateMimetype checks that the mimetype file exists, is stored and
// names the EPUB media type.
func (e *EPUB) validateMimetype() error {
	f, ok := e.files["mimetype"]
	if !ok {
		return ErrMimetypeNotFound
	}
	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := e.readFile("mimetype")
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}
	if string(content) != "application/epub+zip" {
		return ErrInvalidMimetype
	}
	return nil
}

// parseContainer finds the package document path in container.xml.
func (e *EPUB) parseContainer() error {
	content, err := e.readFile("META-INF/container.xml")
	if err != nil {
		return ErrContainerNotFound
	}

	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}

	var first string
	for _, rf := range xmlquery.QuerySelectorAll(doc, rootfileExpr) {
		fullPath := rf.SelectAttr("full-path")
		if fullPath == "" {
			continue
		}
		if mt := rf.SelectAttr("media-type"); mt == "application/oebps-package+xml" || mt == "" {
			e.opfPath = normalizePath(fullPath)
			return nil
		}
		if first == "" {
			first = fullPath
		}
	}

	// If no media-type match, use the first one
	if first != "" {
		e.opfPath = normalizePath(first)
		return nil
	}
	return ErrOPFPathNotFound
}

// normalizePath removes a leading "./".
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "./")
}
