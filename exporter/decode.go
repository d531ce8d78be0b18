package exporter

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeRecord turns raw key/value bytes into text. Strict UTF-8 is
// tried first; if either side is invalid, both fall back to ISO 8859-1,
// which maps every byte value and therefore cannot fail on input. The
// error return exists for the decoder's own failure modes only; a
// returned error skips the record, it never aborts the export.
func decodeRecord(key, value []byte) (string, string, error) {
	if utf8.Valid(key) && utf8.Valid(value) {
		return string(key), string(value), nil
	}

	k, err := charmap.ISO8859_1.NewDecoder().Bytes(key)
	if err != nil {
		return "", "", fmt.Errorf("decoding key: %w", err)
	}
	v, err := charmap.ISO8859_1.NewDecoder().Bytes(value)
	if err != nil {
		return "", "", fmt.Errorf("decoding value: %w", err)
	}
	return string(k), string(v), nil
}
