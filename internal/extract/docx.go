package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

const (
	// defaultDocumentPath is where the document body normally lives in a .docx zip.
	defaultDocumentPath = "word/document.xml"
	contentTypesFile    = "[Content_Types].xml"
	mainDocContentType  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// textNodeRe matches <w:t>...</w:t> with any attributes (e.g. xml:space="preserve").
var textNodeRe = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// Override elements in [Content_Types].xml list attributes in either order.
var (
	overridePartFirst = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(mainDocContentType) + `"`)
	overrideTypeFirst = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(mainDocContentType) + `"[^>]+PartName="([^"]+)"`)
)

// extractDOCX pulls text out of a .docx (an OOXML zip). Rather than parse the
// full WordprocessingML schema, it collects every <w:t> text node from the main
// document part, which survives arbitrary paragraph and run attributes.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := mainDocumentPath(zr)
	if docPath == "" {
		docPath = defaultDocumentPath
	}

	docXML, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	if docXML == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}

	nodes := textNodeRe.FindAllStringSubmatch(string(docXML), -1)
	if len(nodes) == 0 {
		return "", nil
	}
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(n[1]))
	}
	return strings.TrimSpace(b.String()), nil
}

// mainDocumentPath resolves the main document part from [Content_Types].xml.
// Returns "" when the package carries no override for it.
func mainDocumentPath(zr *zip.Reader) string {
	data, err := readZipEntry(zr, contentTypesFile)
	if err != nil || data == nil {
		return ""
	}
	content := string(data)
	if m := overridePartFirst.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := overrideTypeFirst.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// readZipEntry returns the named entry's bytes, or nil if the entry is absent.
func readZipEntry(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}
