package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name      string
		key       []byte
		value     []byte
		wantKey   string
		wantValue string
	}{
		{
			name:  "plain ascii",
			key:   []byte("id:1"), value: []byte("Alice"),
			wantKey: "id:1", wantValue: "Alice",
		},
		{
			name:  "valid utf8 multibyte",
			key:   []byte("clé"), value: []byte("Böb"),
			wantKey: "clé", wantValue: "Böb",
		},
		{
			name:  "latin1 fallback on invalid value",
			key:   []byte("key"), value: []byte("B\xf6b"),
			wantKey: "key", wantValue: "Böb",
		},
		{
			name:  "latin1 fallback on invalid key",
			key:   []byte("caf\xe9"), value: []byte("plain"),
			wantKey: "café", wantValue: "plain",
		},
		{
			name:  "empty record",
			key:   []byte{}, value: []byte{},
			wantKey: "", wantValue: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, err := decodeRecord(tt.key, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestDecodeRecordFallbackNeverFails(t *testing.T) {
	// ISO 8859-1 maps every byte value, so no byte sequence that fails
	// the UTF-8 check can fail the fallback
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	key, value, err := decodeRecord(all, []byte{0xff, 0xfe, 0x80})
	require.NoError(t, err)
	assert.Len(t, []rune(key), 256)
	assert.Equal(t, "\u00ff\u00fe\u0080", value)
}
