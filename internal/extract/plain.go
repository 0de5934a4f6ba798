package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a UTF-8 string. Corpus files occasionally
// carry stray bytes from other encodings; invalid sequences become U+FFFD
// rather than failing the whole file.
func extractPlain(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	return strings.ToValidUTF8(string(content), "�"), nil
}
