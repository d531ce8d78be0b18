package bdb

import (
	"fmt"
)

// btree item types (low bits of the BKEYDATA type byte)
const (
	bKeyData   = 1
	bDuplicate = 2
	bOverflow  = 3

	bDeleteFlag = 0x80
)

// hash item types (first byte of the item)
const (
	hKeyData   = 1
	hDuplicate = 2
	hOffPage   = 3
	hOffDup    = 4
)

type record struct {
	key   []byte
	value []byte
}

// pageRecords extracts the key/value pairs stored on a single page.
// Pages that carry no user data (internal btree nodes, overflow pages,
// duplicate leaves, free pages) yield nothing.
func (db *DB) pageRecords(page []byte, pgno uint32) ([]record, error) {
	switch page[25] {
	case pLBtree:
		return db.btreeLeafRecords(page, pgno)
	case pHash, pHashUnsorted:
		return db.hashPageRecords(page, pgno)
	default:
		return nil, nil
	}
}

// itemOffsets reads the page's index array: one offset per item, keys and
// data alternating.
func (db *DB) itemOffsets(page []byte, pgno uint32) ([]uint16, error) {
	entries := int(db.order.Uint16(page[20:22]))
	if pageHeaderSize+2*entries > len(page) {
		return nil, fmt.Errorf("page %d: %d entries overflow the page", pgno, entries)
	}
	offsets := make([]uint16, entries)
	for i := range offsets {
		offsets[i] = db.order.Uint16(page[pageHeaderSize+2*i:])
	}
	return offsets, nil
}

func (db *DB) btreeLeafRecords(page []byte, pgno uint32) ([]record, error) {
	offsets, err := db.itemOffsets(page, pgno)
	if err != nil {
		return nil, err
	}

	var out []record
	for i := 0; i+1 < len(offsets); i += 2 {
		key, skip, err := db.btreeItem(page, pgno, offsets[i])
		if err != nil {
			return nil, err
		}
		value, vskip, err := db.btreeItem(page, pgno, offsets[i+1])
		if err != nil {
			return nil, err
		}
		if skip || vskip {
			continue
		}
		out = append(out, record{key: key, value: value})
	}
	return out, nil
}

// btreeItem decodes a single BKEYDATA/BOVERFLOW item. skip is true for
// deleted items and duplicate-tree references.
func (db *DB) btreeItem(page []byte, pgno uint32, itemOff uint16) (data []byte, skip bool, err error) {
	off := int(itemOff)
	if off+3 > len(page) {
		return nil, false, fmt.Errorf("page %d: item offset %d out of bounds", pgno, off)
	}
	typ := page[off+2]
	if typ&bDeleteFlag != 0 {
		return nil, true, nil
	}

	switch typ &^ bDeleteFlag {
	case bKeyData:
		dlen := int(db.order.Uint16(page[off : off+2]))
		if off+3+dlen > len(page) {
			return nil, false, fmt.Errorf("page %d: item at %d with length %d out of bounds", pgno, off, dlen)
		}
		return page[off+3 : off+3+dlen], false, nil

	case bOverflow:
		// BOVERFLOW: 2 bytes unused, type, 1 byte pad, pgno, tlen
		if off+12 > len(page) {
			return nil, false, fmt.Errorf("page %d: overflow item at %d out of bounds", pgno, off)
		}
		ovPgno := db.order.Uint32(page[off+4 : off+8])
		tlen := db.order.Uint32(page[off+8 : off+12])
		data, err := db.readOverflow(ovPgno, tlen)
		return data, false, err

	case bDuplicate:
		db.logSkippedDuplicate(pgno)
		return nil, true, nil

	default:
		return nil, false, fmt.Errorf("page %d: unknown btree item type %d at offset %d", pgno, typ, off)
	}
}

func (db *DB) hashPageRecords(page []byte, pgno uint32) ([]record, error) {
	offsets, err := db.itemOffsets(page, pgno)
	if err != nil {
		return nil, err
	}

	var out []record
	for i := 0; i+1 < len(offsets); i += 2 {
		key, skip, err := db.hashItem(page, pgno, offsets, i)
		if err != nil {
			return nil, err
		}
		value, vskip, err := db.hashItem(page, pgno, offsets, i+1)
		if err != nil {
			return nil, err
		}
		if skip || vskip {
			continue
		}
		out = append(out, record{key: key, value: value})
	}
	return out, nil
}

// hashItem decodes a single hash page item. Hash items carry no length
// field: items are packed from the end of the page downward, so an item
// runs from its offset to the previous item's offset (or the page end for
// the first item).
func (db *DB) hashItem(page []byte, pgno uint32, offsets []uint16, idx int) (data []byte, skip bool, err error) {
	off := int(offsets[idx])
	end := len(page)
	if idx > 0 {
		end = int(offsets[idx-1])
	}
	if off >= end || end > len(page) {
		return nil, false, fmt.Errorf("page %d: hash item %d has invalid bounds [%d, %d)", pgno, idx, off, end)
	}

	switch page[off] {
	case hKeyData:
		return page[off+1 : end], false, nil

	case hOffPage:
		// HOFFPAGE: type, 3 bytes pad, pgno, tlen
		if off+12 > len(page) {
			return nil, false, fmt.Errorf("page %d: off-page item at %d out of bounds", pgno, off)
		}
		ovPgno := db.order.Uint32(page[off+4 : off+8])
		tlen := db.order.Uint32(page[off+8 : off+12])
		data, err := db.readOverflow(ovPgno, tlen)
		return data, false, err

	case hDuplicate, hOffDup:
		db.logSkippedDuplicate(pgno)
		return nil, true, nil

	default:
		return nil, false, fmt.Errorf("page %d: unknown hash item type %d at offset %d", pgno, page[off], off)
	}
}
