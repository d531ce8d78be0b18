// Package exporter drives the one-shot migration: it opens a legacy
// Berkeley DB file, walks every record, decodes keys and values to text
// and serializes the whole set as a flat JSON object for re-import into
// a replacement store.
package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/streamingfast/dstore"
	"go.uber.org/zap"

	"github.com/noidtools/bdbexport/bdb"
)

var (
	ErrSourceNotFound = errors.New("source database file not found")
	ErrOpenFailed     = errors.New("unable to open source database")
	ErrWriteFailed    = errors.New("unable to write export file")
)

// openAttempts is the fixed open-hint chain: the legacy format does not
// portably self-describe its organization, so the two common methods are
// tried explicitly before letting the reader infer. First success wins.
var openAttempts = []bdb.AccessMethod{bdb.Btree, bdb.Hash, bdb.Unknown}

// Exporter runs exports and sample previews. Safe to reuse across calls,
// each invocation is independent.
type Exporter struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// DefaultDestPath derives the destination path from the source path by
// replacing its extension with ".json".
func DefaultDestPath(sourcePath string) string {
	return strings.TrimSuffix(sourcePath, filepath.Ext(sourcePath)) + ".json"
}

// Export reads every record of the database at sourcePath and writes the
// decoded set as a JSON object to destPath, which may be a local path or
// any dstore-supported object store URL. It returns the number of
// successfully decoded records.
func (e *Exporter) Export(ctx context.Context, sourcePath, destPath string) (int, error) {
	dir, filename := path.Split(destPath)
	if dir == "" {
		dir = "."
	}
	store, err := dstore.NewStore(strings.TrimSuffix(dir, "/"), "", "", true)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return e.ExportTo(ctx, sourcePath, store, filename)
}

// ExportTo is the injectable form of Export, writing through the given
// store.
func (e *Exporter) ExportTo(ctx context.Context, sourcePath string, store dstore.Store, filename string) (int, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
	}

	db, err := e.openDatabase(sourcePath)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	cursor := db.Cursor()
	defer cursor.Close()

	set := NewExportSet()
	count := 0
	decodeErrors := 0
	for k, v, err := cursor.First(); ; k, v, err = cursor.Next() {
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading records: %w", err)
		}

		key, value, err := decodeRecord(k, v)
		if err != nil {
			// a single undecodable record must not abort the export
			decodeErrors++
			e.logger.Warn("skipping undecodable record", zap.Int("record", count), zap.Error(err))
			continue
		}

		set.Set(key, value)
		count++
		if count%1000 == 0 {
			e.logger.Info("read records", zap.Int("count", count))
		}
	}

	e.logger.Info("all records read",
		zap.Int("count", count),
		zap.Int("decode_errors", decodeErrors),
	)

	content := &bytes.Buffer{}
	if err := set.WriteJSON(content); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := store.WriteObject(ctx, filename, bytes.NewReader(content.Bytes())); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	e.logger.Info("export complete",
		zap.Int("records", count),
		zap.String("file", filename),
		zap.String("size", humanize.Bytes(uint64(content.Len()))),
	)
	return count, nil
}

// Sample prints the first n records to w without writing any file.
// Values longer than 50 characters are truncated for display only.
func (e *Exporter) Sample(sourcePath string, n int, w io.Writer) error {
	if n <= 0 {
		n = 10
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
	}

	db, err := e.openDatabase(sourcePath)
	if err != nil {
		return err
	}
	defer db.Close()

	cursor := db.Cursor()
	defer cursor.Close()

	rule := strings.Repeat("-", 60)
	fmt.Fprintf(w, "\nSample records (first %d):\n\n%s\n", n, rule)

	count := 0
	for k, v, err := cursor.First(); count < n; k, v, err = cursor.Next() {
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading records: %w", err)
		}

		key, value, err := decodeRecord(k, v)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %s\n    => %s\n\n", key, truncate(value, 50))
		count++
	}

	fmt.Fprintln(w, rule)
	return nil
}

// openDatabase walks the open-hint chain. Only a method mismatch falls
// through to the next hint; any other failure, or failure of the final
// inferring attempt, aborts.
func (e *Exporter) openDatabase(sourcePath string) (*bdb.DB, error) {
	for i, method := range openAttempts {
		e.logger.Debug("trying access method", zap.Stringer("access_method", method))
		db, err := bdb.Open(sourcePath, method)
		if err == nil {
			e.logger.Info("database opened", zap.Stringer("access_method", db.Method()))
			return db, nil
		}
		if errors.Is(err, bdb.ErrInvalidMethod) && i < len(openAttempts)-1 {
			e.logger.Debug("access method rejected", zap.Stringer("access_method", method))
			continue
		}
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	panic("open attempts exhausted without a terminal attempt")
}

// truncate shortens s to max characters for display, marking the cut
// with an ellipsis.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
