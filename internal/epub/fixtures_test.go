package epub

import (
	"archive/zip"
	"bytes"
	"testing"
)

// buildArchive assembles an in-memory EPUB zip from the given entries.
func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const containerXMLFixture = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// epub2OPF references an NCX via the spine toc attribute.
const epub2OPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover" href="cover.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch1s1" href="ch1s1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="cover"/>
    <itemref idref="ch1"/>
    <itemref idref="ch1s1"/>
  </spine>
</package>`

// ncxFixture is a two-level nav map: Cover, Chapter 1 > Section 1.1.
const ncxFixture = `<?xml version="1.0"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="p1"><navLabel><text>Cover</text></navLabel><content src="cover.xhtml"/></navPoint>
    <navPoint id="p2"><navLabel><text>Chapter 1</text></navLabel><content src="ch1.xhtml"/>
      <navPoint id="p3"><navLabel><text>Section 1.1</text></navLabel><content src="ch1s1.xhtml#s11"/></navPoint>
    </navPoint>
  </navMap>
</ncx>`

// epub3OPF marks a navigation document via the nav property.
const epub3OPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="cover" href="cover.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch1s1" href="ch1s1.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="cover"/>
    <itemref idref="ch1"/>
    <itemref idref="ch1s1"/>
  </spine>
</package>`

// navFixture is the EPUB 3 nav document with the same two-level structure.
const navFixture = `<?xml version="1.0"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
<nav epub:type="toc">
  <ol>
    <li><a href="cover.xhtml">Cover</a></li>
    <li><a href="ch1.xhtml">Chapter 1</a>
      <ol>
        <li><a href="ch1s1.xhtml#s11">Section 1.1</a></li>
      </ol>
    </li>
  </ol>
</nav>
</body>
</html>`

const coverXHTML = `<html><body>cover page</body></html>`
const ch1XHTML = `<html><head><style>p{}</style></head><body><p>Hello  world</p><script>var x=1;</script></body></html>`
const ch1s1XHTML = `<html><body><p>Section body text here</p></body></html>`
