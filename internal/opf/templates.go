package opf

import (
	"fmt"
	"strings"
)

const template2Text = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="BookId">

  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier opf:scheme="UUID" id="BookId">urn:uuid:%[1]s</dc:identifier>
    <dc:language>%[2]s</dc:language>
    <dc:title>%[3]s</dc:title>
  </metadata>

  <manifest>
  </manifest>

  <spine>
  </spine>

</package>`

const template3Text = `<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" unique-identifier="BookId" xmlns="http://www.idpf.org/2007/opf">

  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="BookId">urn:uuid:%[1]s</dc:identifier>
    <dc:language>%[2]s</dc:language>
    <dc:title>%[3]s</dc:title>
    <meta property="dcterms:modified">%[4]s</meta>
  </metadata>

  <manifest>
  </manifest>

  <spine>
  </spine>

</package>`

const (
	defaultTitle2 = "[Title here]"
	defaultTitle3 = "[Main title here]"
)

// DefaultText renders the blank package document for version. Versions
// starting with "2" get the version 2 skeleton, everything else version 3.
func DefaultText(version, uuid, lang, modified string) string {
	if strings.HasPrefix(version, "2") {
		return fmt.Sprintf(template2Text, textEscaper.Replace(uuid), textEscaper.Replace(lang), defaultTitle2)
	}
	return fmt.Sprintf(template3Text, textEscaper.Replace(uuid), textEscaper.Replace(lang), defaultTitle3, modified)
}
