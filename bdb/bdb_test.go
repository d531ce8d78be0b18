package bdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(key, value string) FixtureRecord {
	return FixtureRecord{Key: []byte(key), Value: []byte(value)}
}

func collectRecords(t *testing.T, db *DB) (keys, values []string) {
	t.Helper()
	cur := db.Cursor()
	defer cur.Close()
	for k, v, err := cur.First(); ; k, v, err = cur.Next() {
		if errors.Is(err, io.EOF) {
			return
		}
		require.NoError(t, err)
		keys = append(keys, string(k))
		values = append(values, string(v))
	}
}

func TestOpenBtree(t *testing.T) {
	path := Fixture{}.WriteFile(t, "noid.bdb", []FixtureRecord{
		rec("id:1", "Alice"),
		rec("id:2", "Bob"),
		rec("id:3", "Carol"),
	})

	db, err := Open(path, Btree)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, Btree, db.Method())
	assert.Equal(t, uint32(512), db.PageSize())

	keys, values := collectRecords(t, db)
	assert.Equal(t, []string{"id:1", "id:2", "id:3"}, keys)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, values)
}

func TestOpenHash(t *testing.T) {
	path := Fixture{Method: Hash}.WriteFile(t, "noid.bdb", []FixtureRecord{
		rec("id:1", "Alice"),
		rec("id:2", "Bob"),
	})

	db, err := Open(path, Hash)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, Hash, db.Method())

	keys, values := collectRecords(t, db)
	assert.Equal(t, []string{"id:1", "id:2"}, keys)
	assert.Equal(t, []string{"Alice", "Bob"}, values)
}

func TestOpenWrongMethod(t *testing.T) {
	btreePath := Fixture{}.WriteFile(t, "btree.bdb", []FixtureRecord{rec("k", "v")})
	hashPath := Fixture{Method: Hash}.WriteFile(t, "hash.bdb", []FixtureRecord{rec("k", "v")})

	_, err := Open(btreePath, Hash)
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, err = Open(hashPath, Btree)
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestOpenUnknownInfersMethod(t *testing.T) {
	tests := []struct {
		name   string
		method AccessMethod
	}{
		{"btree", Btree},
		{"hash", Hash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := Fixture{Method: tt.method}.WriteFile(t, "noid.bdb", []FixtureRecord{rec("k", "v")})

			db, err := Open(path, Unknown)
			require.NoError(t, err)
			defer db.Close()

			assert.Equal(t, tt.method, db.Method())
			keys, values := collectRecords(t, db)
			assert.Equal(t, []string{"k"}, keys)
			assert.Equal(t, []string{"v"}, values)
		})
	}
}

func TestOpenBigEndian(t *testing.T) {
	path := Fixture{Order: binary.BigEndian}.WriteFile(t, "noid.bdb", []FixtureRecord{
		rec("id:1", "Alice"),
		rec("id:2", "Bob"),
	})

	db, err := Open(path, Unknown)
	require.NoError(t, err)
	defer db.Close()

	keys, values := collectRecords(t, db)
	assert.Equal(t, []string{"id:1", "id:2"}, keys)
	assert.Equal(t, []string{"Alice", "Bob"}, values)
}

func TestOverflowValues(t *testing.T) {
	// 2000 bytes spans multiple 512-byte overflow pages
	big := strings.Repeat("x", 1000) + strings.Repeat("y", 1000)

	for _, method := range []AccessMethod{Btree, Hash} {
		t.Run(method.String(), func(t *testing.T) {
			path := Fixture{Method: method}.WriteFile(t, "noid.bdb", []FixtureRecord{
				{Key: []byte("big"), Value: []byte(big), Overflow: true},
				rec("small", "v"),
			})

			db, err := Open(path, method)
			require.NoError(t, err)
			defer db.Close()

			keys, values := collectRecords(t, db)
			require.Equal(t, []string{"big", "small"}, keys)
			assert.Equal(t, big, values[0])
			assert.Equal(t, "v", values[1])
		})
	}
}

func TestDeletedRecordsSkipped(t *testing.T) {
	path := Fixture{}.WriteFile(t, "noid.bdb", []FixtureRecord{
		rec("keep1", "v1"),
		{Key: []byte("gone"), Value: []byte("v2"), Deleted: true},
		rec("keep2", "v3"),
	})

	db, err := Open(path, Btree)
	require.NoError(t, err)
	defer db.Close()

	keys, _ := collectRecords(t, db)
	assert.Equal(t, []string{"keep1", "keep2"}, keys)
}

func TestMultiplePages(t *testing.T) {
	var recs []FixtureRecord
	var wantKeys []string
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%04d", i)
		recs = append(recs, rec(key, fmt.Sprintf("value for record %d", i)))
		wantKeys = append(wantKeys, key)
	}

	for _, method := range []AccessMethod{Btree, Hash} {
		t.Run(method.String(), func(t *testing.T) {
			path := Fixture{Method: method}.WriteFile(t, "noid.bdb", recs)

			db, err := Open(path, method)
			require.NoError(t, err)
			defer db.Close()

			keys, values := collectRecords(t, db)
			assert.Equal(t, wantKeys, keys)
			require.Len(t, values, 200)
			assert.Equal(t, "value for record 199", values[199])
		})
	}
}

func TestEmptyDatabase(t *testing.T) {
	path := Fixture{}.WriteFile(t, "noid.bdb", nil)

	db, err := Open(path, Btree)
	require.NoError(t, err)
	defer db.Close()

	cur := db.Cursor()
	defer cur.Close()
	_, _, err = cur.First()
	require.ErrorIs(t, err, io.EOF)
}

func TestCursorFirstRewinds(t *testing.T) {
	path := Fixture{}.WriteFile(t, "noid.bdb", []FixtureRecord{
		rec("a", "1"),
		rec("b", "2"),
	})

	db, err := Open(path, Btree)
	require.NoError(t, err)
	defer db.Close()

	cur := db.Cursor()
	defer cur.Close()

	k, _, err := cur.First()
	require.NoError(t, err)
	assert.Equal(t, "a", string(k))

	k, _, err = cur.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", string(k))

	k, _, err = cur.First()
	require.NoError(t, err)
	assert.Equal(t, "a", string(k))
}

func TestOpenGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a berkeley db file. ", 100)), 0o644))

	// explicit hints read a foreign file as a method mismatch so callers
	// can fall through the hint chain
	_, err := Open(path, Btree)
	require.ErrorIs(t, err, ErrInvalidMethod)
	_, err = Open(path, Hash)
	require.ErrorIs(t, err, ErrInvalidMethod)

	// the final, inferring attempt fails hard
	_, err = Open(path, Unknown)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidMethod)
	assert.Contains(t, err.Error(), "unrecognized database magic")
}

func TestOpenTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bdb")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644))

	_, err := Open(path, Unknown)
	require.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bdb"), Unknown)
	require.Error(t, err)
}
