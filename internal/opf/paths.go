package opf

import (
	"net/url"
	"path"
	"strings"
	"unicode"
)

// EncodeHref percent-encodes each segment of a relative path, keeping the
// separators.
func EncodeHref(p string) string {
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if s == "." || s == ".." {
			continue
		}
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// DecodeHref reverses EncodeHref. Undecodable input is returned unchanged.
func DecodeHref(href string) string {
	dec, err := url.PathUnescape(href)
	if err != nil {
		return href
	}
	return dec
}

// splitFragment splits an href into the path and fragment identifier.
func splitFragment(src string) (p, fragment string) {
	if src == "" {
		return "", ""
	}
	parts := strings.SplitN(src, "#", 2)
	p = parts[0]
	if len(parts) == 2 {
		fragment = parts[1]
	}
	return p, fragment
}

// startingDir returns the folder part of a book path, "" at the book root.
func startingDir(bookPath string) string {
	dir := path.Dir(bookPath)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// relativePath returns the path of dest relative to the folder holding from.
// Both are book paths.
func relativePath(from, dest string) string {
	fromDir := startingDir(from)
	if fromDir == "" {
		return dest
	}
	fromSegs := strings.Split(fromDir, "/")
	destSegs := strings.Split(dest, "/")
	i := 0
	for i < len(fromSegs) && i < len(destSegs)-1 && fromSegs[i] == destSegs[i] {
		i++
	}
	var parts []string
	for j := i; j < len(fromSegs); j++ {
		parts = append(parts, "..")
	}
	parts = append(parts, destSegs[i:]...)
	return strings.Join(parts, "/")
}

// bookPath resolves a decoded relative href against a folder.
func bookPath(rel, folder string) string {
	if rel == "" {
		return ""
	}
	joined := path.Clean(path.Join(folder, rel))
	return strings.TrimPrefix(joined, "/")
}

// validID turns a filename into a legal XML id: illegal characters become
// underscores and a leading non-letter gets an "x" prefix.
func validID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	id := b.String()
	if id == "" {
		return "x"
	}
	first := []rune(id)[0]
	if !unicode.IsLetter(first) && first != '_' {
		id = "x" + id
	}
	return id
}
