package bdb

import (
	"errors"
	"io"
)

// Cursor iterates every record of the database in page order. It walks
// the data pages linearly rather than following the btree or the hash
// directory, which yields each record exactly once and tolerates files
// whose internal linkage is damaged.
type Cursor struct {
	db       *DB
	nextPgno uint32
	recs     []record
	idx      int
}

// Cursor returns a forward-only cursor positioned before the first
// record.
func (db *DB) Cursor() *Cursor {
	return &Cursor{db: db, nextPgno: 1}
}

// First rewinds the cursor and returns the first record. It returns
// io.EOF if the database holds no records.
func (c *Cursor) First() (key, value []byte, err error) {
	c.nextPgno = 1
	c.recs = nil
	c.idx = 0
	return c.Next()
}

// Next returns the next record, or io.EOF once the database is
// exhausted.
func (c *Cursor) Next() (key, value []byte, err error) {
	if c.db == nil {
		return nil, nil, errors.New("cursor is closed")
	}
	for {
		if c.idx < len(c.recs) {
			rec := c.recs[c.idx]
			c.idx++
			return rec.key, rec.value, nil
		}
		if c.nextPgno > c.db.lastPgno {
			return nil, nil, io.EOF
		}
		page, err := c.db.readPage(c.nextPgno)
		if err != nil {
			return nil, nil, err
		}
		recs, err := c.db.pageRecords(page, c.nextPgno)
		if err != nil {
			return nil, nil, err
		}
		c.nextPgno++
		c.recs = recs
		c.idx = 0
	}
}

// Close detaches the cursor from its database. The database handle
// itself stays open.
func (c *Cursor) Close() error {
	c.db = nil
	return nil
}
