package exporter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// ExportSet is the decoded key/value mapping accumulated during an
// export. Keys keep their first-insertion order; setting an existing key
// overwrites its value in place. The later-record-wins behavior on
// colliding decoded keys is an accepted lossy-migration tradeoff.
type ExportSet struct {
	keys   []string
	values map[string]string
}

func NewExportSet() *ExportSet {
	return &ExportSet{values: make(map[string]string)}
}

func (s *ExportSet) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

func (s *ExportSet) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *ExportSet) Len() int {
	return len(s.keys)
}

// WriteJSON serializes the set as a flat string-to-string JSON object:
// 2-space indentation, insertion order, non-ASCII characters emitted
// literally. This shape is the contract with the downstream importer.
func (s *ExportSet) WriteJSON(w io.Writer) error {
	if len(s.keys) == 0 {
		_, err := io.WriteString(w, "{}")
		return err
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("{\n")
	for i, key := range s.keys {
		bw.WriteString("  ")
		if err := writeJSONString(bw, key); err != nil {
			return err
		}
		bw.WriteString(": ")
		if err := writeJSONString(bw, s.values[key]); err != nil {
			return err
		}
		if i < len(s.keys)-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}
	bw.WriteByte('}')
	return bw.Flush()
}

// writeJSONString emits a single JSON string literal without HTML
// escaping, so non-ASCII text survives as-is.
func writeJSONString(w io.Writer, s string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}
