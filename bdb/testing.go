package bdb

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// FixtureRecord is one key/value pair to place in a fixture database.
type FixtureRecord struct {
	Key   []byte
	Value []byte

	// Overflow forces the value onto an overflow page chain regardless of
	// its size.
	Overflow bool

	// Deleted marks the pair deleted on disk (btree fixtures only, hash
	// pages compact deleted items away).
	Deleted bool
}

// Fixture assembles syntactically valid Berkeley DB files, page by page,
// for tests. The zero value builds a little-endian btree file with
// 512-byte pages.
type Fixture struct {
	Method   AccessMethod
	PageSize uint32
	Order    binary.ByteOrder
}

// WriteFile builds the fixture and writes it under a test temp dir,
// returning the file path.
func (fx Fixture) WriteFile(t testing.TB, name string, recs []FixtureRecord) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, fx.Build(recs), 0o644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

// Build returns the raw bytes of the fixture database file.
func (fx Fixture) Build(recs []FixtureRecord) []byte {
	ps := int(fx.PageSize)
	if ps == 0 {
		ps = 512
	}
	ord := fx.Order
	if ord == nil {
		ord = binary.LittleEndian
	}
	method := fx.Method
	if method == Unknown {
		method = Btree
	}

	b := &fixtureBuilder{ps: ps, ord: ord, method: method}
	b.pages = append(b.pages, nil) // reserve pgno 0 for the meta page
	b.startDataPage()
	for _, rec := range recs {
		b.addRecord(rec)
	}
	b.flushDataPage()

	meta := make([]byte, ps)
	magic, metaType := uint32(btreeMagic), byte(pBtreeMeta)
	if method == Hash {
		magic, metaType = hashMagic, pHashMeta
	}
	ord.PutUint32(meta[12:], magic)
	ord.PutUint32(meta[16:], 9) // current on-disk version
	ord.PutUint32(meta[20:], uint32(ps))
	meta[25] = metaType
	ord.PutUint32(meta[32:], uint32(len(b.pages)-1)) // last_pgno
	if method == Btree {
		ord.PutUint32(meta[76:], 2) // minkey
		ord.PutUint32(meta[88:], 1) // root
	}
	b.pages[0] = meta

	out := make([]byte, 0, len(b.pages)*ps)
	for _, p := range b.pages {
		out = append(out, p...)
	}
	return out
}

type fixtureBuilder struct {
	ps     int
	ord    binary.ByteOrder
	method AccessMethod
	pages  [][]byte

	cur    []byte
	curIdx []uint16
	tail   int
}

func (b *fixtureBuilder) startDataPage() {
	b.cur = make([]byte, b.ps)
	b.curIdx = nil
	b.tail = b.ps
}

func (b *fixtureBuilder) flushDataPage() {
	page := b.cur
	pgno := uint32(len(b.pages))
	typ, level := byte(pLBtree), byte(1)
	if b.method == Hash {
		typ, level = pHash, 0
	}
	b.ord.PutUint32(page[8:], pgno)
	b.ord.PutUint16(page[20:], uint16(len(b.curIdx)))
	b.ord.PutUint16(page[22:], uint16(b.tail))
	page[24] = level
	page[25] = typ
	for i, off := range b.curIdx {
		b.ord.PutUint16(page[pageHeaderSize+2*i:], off)
	}
	b.pages = append(b.pages, page)
	b.startDataPage()
}

func (b *fixtureBuilder) addRecord(rec FixtureRecord) {
	var items [][]byte
	switch b.method {
	case Hash:
		items = [][]byte{b.hashItem(rec.Key, false), b.hashItem(rec.Value, rec.Overflow)}
	default:
		items = [][]byte{
			b.btreeItem(rec.Key, false, rec.Deleted),
			b.btreeItem(rec.Value, rec.Overflow, rec.Deleted),
		}
	}

	need := 2 * len(items)
	for _, it := range items {
		need += len(it)
	}
	if free := b.tail - (pageHeaderSize + 2*len(b.curIdx)); need > free {
		b.flushDataPage()
		if need > b.ps-pageHeaderSize {
			panic("fixture record does not fit on an empty page, set Overflow")
		}
	}
	for _, it := range items {
		b.tail -= len(it)
		copy(b.cur[b.tail:], it)
		b.curIdx = append(b.curIdx, uint16(b.tail))
	}
}

func (b *fixtureBuilder) btreeItem(data []byte, overflow, deleted bool) []byte {
	var deleteBit byte
	if deleted {
		deleteBit = bDeleteFlag
	}
	if overflow {
		item := make([]byte, 12)
		item[2] = bOverflow | deleteBit
		pgno := b.addOverflowChain(data)
		b.ord.PutUint32(item[4:], pgno)
		b.ord.PutUint32(item[8:], uint32(len(data)))
		return item
	}
	item := make([]byte, 3+len(data))
	b.ord.PutUint16(item[0:], uint16(len(data)))
	item[2] = bKeyData | deleteBit
	copy(item[3:], data)
	return item
}

func (b *fixtureBuilder) hashItem(data []byte, overflow bool) []byte {
	if overflow {
		item := make([]byte, 12)
		item[0] = hOffPage
		pgno := b.addOverflowChain(data)
		b.ord.PutUint32(item[4:], pgno)
		b.ord.PutUint32(item[8:], uint32(len(data)))
		return item
	}
	item := make([]byte, 1+len(data))
	item[0] = hKeyData
	copy(item[1:], data)
	return item
}

// addOverflowChain lays data out over one or more overflow pages and
// returns the first page number of the chain.
func (b *fixtureBuilder) addOverflowChain(data []byte) uint32 {
	perPage := b.ps - pageHeaderSize
	var first uint32
	var prev []byte
	rem := data
	for {
		page := make([]byte, b.ps)
		pgno := uint32(len(b.pages))
		n := len(rem)
		if n > perPage {
			n = perPage
		}
		b.ord.PutUint32(page[8:], pgno)
		b.ord.PutUint16(page[20:], 1)         // reference count
		b.ord.PutUint16(page[22:], uint16(n)) // bytes in use
		page[25] = pOverflow
		copy(page[pageHeaderSize:], rem[:n])
		rem = rem[n:]

		if prev == nil {
			first = pgno
		} else {
			b.ord.PutUint32(prev[16:], pgno)
		}
		b.pages = append(b.pages, page)
		prev = page
		if len(rem) == 0 {
			return first
		}
	}
}
