package bdb

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// DBMETA layout, common to all access methods (db_page.h):
//
//	12-15  magic
//	16-19  version
//	20-23  pagesize
//	24     encrypt_alg
//	25     type
//	26     metaflags
//	32-35  last_pgno
//	48-51  flags
const (
	metaSize = 92

	metaChksum = 0x02 // DBMETA_CHKSUM

	btreeRecno = 0x002 // BTM_RECNO
	btreeSubdb = 0x020 // BTM_SUBDB
)

// readMeta parses the metadata page and validates it against the
// requested access method.
func readMeta(f *os.File, path string, method AccessMethod) (*DB, error) {
	buf := make([]byte, metaSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("reading metadata page: %w", err)
	}

	// the metadata page is written in the creating machine's byte order;
	// probing the magic both ways resolves it
	order, magic, err := resolveByteOrder(buf)
	if err != nil {
		if method != Unknown {
			// under an explicit hint an unrecognizable file reads as a
			// mismatch, letting callers fall through to the next hint
			return nil, fmt.Errorf("%w: %w", ErrInvalidMethod, err)
		}
		return nil, err
	}

	resolved, metaType, err := methodForMagic(magic)
	if err != nil {
		if method != Unknown {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMethod, err)
		}
		return nil, err
	}
	if method != Unknown && method != resolved {
		return nil, fmt.Errorf("%w: requested %s, file is %s", ErrInvalidMethod, method, resolved)
	}
	if buf[25] != metaType {
		return nil, fmt.Errorf("metadata page type %d does not match %s magic", buf[25], resolved)
	}

	if buf[24] != 0 {
		return nil, fmt.Errorf("encrypted databases are not supported (algorithm %d)", buf[24])
	}
	if buf[26]&metaChksum != 0 {
		return nil, fmt.Errorf("checksummed databases are not supported")
	}

	pageSize := order.Uint32(buf[20:24])
	if pageSize < 512 || pageSize > 65536 || pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("invalid page size %d", pageSize)
	}

	db := &DB{
		f:        f,
		path:     path,
		order:    order,
		method:   resolved,
		version:  order.Uint32(buf[16:20]),
		pageSize: pageSize,
		lastPgno: order.Uint32(buf[32:36]),
	}

	flags := order.Uint32(buf[48:52])
	if resolved == Btree {
		if flags&btreeRecno != 0 {
			return nil, fmt.Errorf("recno databases are not supported")
		}
		if flags&btreeSubdb != 0 {
			zlog.Warn("file contains multiple databases, exporting records from all of them",
				zap.String("path", path))
		}
	}

	// never trust last_pgno past the end of the file
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat database file: %w", err)
	}
	if fi.Size() < int64(pageSize) {
		return nil, fmt.Errorf("file smaller than a single page (%d bytes)", fi.Size())
	}
	if maxPgno := uint32(fi.Size()/int64(pageSize)) - 1; db.lastPgno > maxPgno {
		zlog.Warn("metadata last_pgno exceeds file size, clamping",
			zap.String("path", path),
			zap.Uint32("last_pgno", db.lastPgno),
			zap.Uint32("max_pgno", maxPgno),
		)
		db.lastPgno = maxPgno
	}

	zlog.Debug("metadata page parsed",
		zap.String("path", path),
		zap.Stringer("access_method", resolved),
		zap.Uint32("version", db.version),
		zap.Uint32("page_size", pageSize),
		zap.Uint32("last_pgno", db.lastPgno),
	)
	return db, nil
}

func resolveByteOrder(meta []byte) (binary.ByteOrder, uint32, error) {
	magic := binary.LittleEndian.Uint32(meta[12:16])
	if knownMagic(magic) {
		return binary.LittleEndian, magic, nil
	}
	magic = binary.BigEndian.Uint32(meta[12:16])
	if knownMagic(magic) {
		return binary.BigEndian, magic, nil
	}
	return nil, 0, fmt.Errorf("unrecognized database magic 0x%08x", binary.LittleEndian.Uint32(meta[12:16]))
}

func knownMagic(magic uint32) bool {
	return magic == btreeMagic || magic == hashMagic || magic == queueMagic
}

func methodForMagic(magic uint32) (AccessMethod, byte, error) {
	switch magic {
	case btreeMagic:
		return Btree, pBtreeMeta, nil
	case hashMagic:
		return Hash, pHashMeta, nil
	case queueMagic:
		return 0, 0, fmt.Errorf("queue databases are not supported")
	default:
		return 0, 0, fmt.Errorf("unrecognized database magic 0x%08x", magic)
	}
}
