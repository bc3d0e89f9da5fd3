package opf

import "strings"

// GuideItems knows the legacy guide reference types: their display names,
// the default reference title per language, and which of them may appear
// only once in a book.
type GuideItems struct {
	names  map[string]string
	titles map[string]map[string]string // lang -> code -> title
}

var guideNames = map[string]string{
	"cover":            "Cover",
	"title-page":       "Title Page",
	"toc":              "Table Of Contents",
	"index":            "Index",
	"glossary":         "Glossary",
	"acknowledgements": "Acknowledgements",
	"bibliography":     "Bibliography",
	"colophon":         "Colophon",
	"copyright-page":   "Copyright Page",
	"dedication":       "Dedication",
	"epigraph":         "Epigraph",
	"foreword":         "Foreword",
	"loi":              "List Of Illustrations",
	"lot":              "List Of Tables",
	"notes":            "Notes",
	"preface":          "Preface",
	"text":             "Text",
}

var guideTitles = map[string]map[string]string{
	"de": {
		"cover":      "Cover",
		"title-page": "Titelseite",
		"toc":        "Inhaltsverzeichnis",
		"index":      "Stichwortverzeichnis",
		"glossary":   "Glossar",
		"dedication": "Widmung",
		"foreword":   "Vorwort",
		"preface":    "Vorwort",
		"notes":      "Anmerkungen",
		"text":       "Beginn",
	},
	"fr": {
		"cover":      "Couverture",
		"title-page": "Page de titre",
		"toc":        "Table des matières",
		"index":      "Index",
		"glossary":   "Glossaire",
		"dedication": "Dédicace",
		"foreword":   "Avant-propos",
		"preface":    "Préface",
		"notes":      "Notes",
		"text":       "Début",
	},
}

// DefaultGuideItems returns the built-in guide vocabulary.
func DefaultGuideItems() *GuideItems {
	return &GuideItems{names: guideNames, titles: guideTitles}
}

// Name returns the display name of a guide code; unknown codes are returned
// unchanged.
func (g *GuideItems) Name(code string) string {
	if n, ok := g.names[code]; ok {
		return n
	}
	return code
}

// Title returns the reference title for code in lang, falling back to the
// language's primary subtag and then to the English name.
func (g *GuideItems) Title(code, lang string) string {
	lang = strings.ToLower(lang)
	for _, l := range []string{lang, strings.SplitN(lang, "-", 2)[0]} {
		if t, ok := g.titles[l][code]; ok {
			return t
		}
	}
	return g.Name(code)
}

// IsUnique reports whether code may be held by at most one guide entry.
// Custom "other." codes may repeat.
func (g *GuideItems) IsUnique(code string) bool {
	return code != "" && !strings.HasPrefix(code, "other.")
}
