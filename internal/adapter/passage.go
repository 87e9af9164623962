package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

// maxLineBytes bounds a single corpus line (16MB). Wiki passages are
// far smaller; anything beyond this is a malformed record.
const maxLineBytes = 16 * 1024 * 1024

// PassageAdapter handles flat passage collections: JSONL files with one
// record per line, or TSV files with a header row (the shape the INSCIT
// wiki corpus ships in). RawPath may be a single file or a directory,
// in which case files are consumed in name order.
type PassageAdapter struct {
	tsv bool
}

// ValidateSchema samples the first record of the first corpus file and
// checks the schema's id and text fields against it.
func (a *PassageAdapter) ValidateSchema(d registry.Descriptor) error {
	files, err := corpusFiles(d)
	if err != nil {
		return err
	}

	idField, textFields, _ := schemaFields(d.Schema)
	if idField == "" {
		return errors.SchemaMismatch(d.Name, "schema declares no id field")
	}
	if len(textFields) == 0 {
		return errors.SchemaMismatch(d.Name, "schema declares no text fields")
	}

	f, err := os.Open(files[0])
	if err != nil {
		return errors.MissingPath(files[0], err).WithDataset(d.Name)
	}
	defer f.Close()

	scanner := newLineScanner(f)
	if a.tsv {
		if !scanner.Scan() {
			return nil // empty corpus is vacuously valid
		}
		header := splitTSV(scanner.Text())
		cols := make(map[string]bool, len(header))
		for _, h := range header {
			cols[h] = true
		}
		var missing []string
		for _, field := range append([]string{idField}, textFields...) {
			if !cols[field] {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return errors.SchemaMismatch(d.Name, "missing columns: "+strings.Join(missing, ", "))
		}
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return errors.SchemaMismatch(d.Name, "malformed JSONL record: "+err.Error())
		}
		var missing []string
		for _, field := range append([]string{idField}, textFields...) {
			if _, ok := record[field]; !ok {
				missing = append(missing, field)
			}
		}
		if len(missing) > 0 {
			return errors.SchemaMismatch(d.Name, "missing fields: "+strings.Join(missing, ", "))
		}
		return nil
	}
	return nil
}

// Documents streams one document per record, file by file in name order.
func (a *PassageAdapter) Documents(ctx context.Context, d registry.Descriptor) (Iterator, error) {
	files, err := corpusFiles(d)
	if err != nil {
		return nil, err
	}
	idField, textFields, metaFields := schemaFields(d.Schema)
	return &passageIterator{
		ctx:        ctx,
		dataset:    d.Name,
		tsv:        a.tsv,
		files:      files,
		idField:    idField,
		textFields: textFields,
		metaFields: metaFields,
		seen:       make(seenIDs),
	}, nil
}

type passageIterator struct {
	ctx        context.Context
	dataset    string
	tsv        bool
	files      []string
	idField    string
	textFields []string
	metaFields []string
	seen       seenIDs

	file    *os.File
	scanner *bufio.Scanner
	columns map[string]int
}

func (it *passageIterator) Next() (*Document, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}

	for {
		if it.scanner == nil {
			if len(it.files) == 0 {
				return nil, io.EOF
			}
			path := it.files[0]
			it.files = it.files[1:]
			f, err := os.Open(path)
			if err != nil {
				return nil, errors.MissingPath(path, err).WithDataset(it.dataset)
			}
			it.file = f
			it.scanner = newLineScanner(f)
			if it.tsv {
				if err := it.readHeader(); err != nil {
					return nil, err
				}
			}
		}

		if !it.scanner.Scan() {
			if err := it.scanner.Err(); err != nil {
				return nil, errors.Wrap(errors.ErrCodeSchemaMismatch, err).WithDataset(it.dataset)
			}
			_ = it.file.Close()
			it.file = nil
			it.scanner = nil
			continue
		}

		line := strings.TrimSpace(it.scanner.Text())
		if line == "" {
			continue
		}
		if it.tsv {
			return it.decodeTSV(line)
		}
		return it.decodeJSONL(line)
	}
}

func (it *passageIterator) readHeader() error {
	if !it.scanner.Scan() {
		// Empty file; next Scan on the outer loop closes it.
		it.columns = nil
		return nil
	}
	header := splitTSV(it.scanner.Text())
	it.columns = make(map[string]int, len(header))
	for i, h := range header {
		it.columns[h] = i
	}
	return nil
}

func (it *passageIterator) decodeJSONL(line string) (*Document, error) {
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return nil, errors.SchemaMismatch(it.dataset, "malformed JSONL record: "+err.Error())
	}

	id := fieldString(record[it.idField])
	if id == "" {
		return nil, errors.SchemaMismatch(it.dataset, "record has empty id")
	}
	if err := it.seen.check(it.dataset, id); err != nil {
		return nil, err
	}

	var parts []string
	for _, field := range it.textFields {
		if v := fieldString(record[field]); v != "" {
			parts = append(parts, v)
		}
	}
	var meta map[string]string
	for _, field := range it.metaFields {
		if v := fieldString(record[field]); v != "" {
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[field] = v
		}
	}

	return &Document{ID: id, Contents: strings.Join(parts, "\n"), Metadata: meta}, nil
}

func (it *passageIterator) decodeTSV(line string) (*Document, error) {
	cells := splitTSV(line)
	get := func(field string) string {
		idx, ok := it.columns[field]
		if !ok || idx >= len(cells) {
			return ""
		}
		return cells[idx]
	}

	id := get(it.idField)
	if id == "" {
		return nil, errors.SchemaMismatch(it.dataset, "row has empty id column")
	}
	if err := it.seen.check(it.dataset, id); err != nil {
		return nil, err
	}

	var parts []string
	for _, field := range it.textFields {
		if v := get(field); v != "" {
			parts = append(parts, v)
		}
	}
	var meta map[string]string
	for _, field := range it.metaFields {
		if v := get(field); v != "" {
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[field] = v
		}
	}

	return &Document{ID: id, Contents: strings.Join(parts, "\n"), Metadata: meta}, nil
}

func (it *passageIterator) Close() error {
	if it.file != nil {
		return it.file.Close()
	}
	return nil
}

// corpusFiles resolves the descriptor's raw path to an ordered list of
// corpus files. Directories are read in name order for deterministic
// document ordering; hidden files are skipped.
func corpusFiles(d registry.Descriptor) ([]string, error) {
	info, err := os.Stat(d.RawPath)
	if err != nil {
		return nil, errors.MissingPath(d.RawPath, err).WithDataset(d.Name)
	}
	if !info.IsDir() {
		return []string{d.RawPath}, nil
	}

	entries, err := os.ReadDir(d.RawPath)
	if err != nil {
		return nil, errors.MissingPath(d.RawPath, err).WithDataset(d.Name)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(d.RawPath, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, errors.MissingPath(d.RawPath, nil).WithDataset(d.Name)
	}
	return files, nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return scanner
}

func splitTSV(line string) []string {
	parts := strings.Split(line, "\t")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
