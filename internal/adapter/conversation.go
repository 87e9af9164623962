package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

// ConversationAdapter handles dialogue corpora: a single JSON file whose
// top level maps dialogue keys to objects carrying a "turns" array
// (iKAT/INSCIT style). Each turn becomes one document.
type ConversationAdapter struct{}

// dialogue is the decoded shape of one conversation.
type dialogue struct {
	Turns []map[string]any `json:"turns"`
}

// ValidateSchema decodes the first dialogue and checks its first turn
// for the text fields the schema requires.
func (a *ConversationAdapter) ValidateSchema(d registry.Descriptor) error {
	f, err := os.Open(d.RawPath)
	if err != nil {
		return errors.MissingPath(d.RawPath, err).WithDataset(d.Name)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := expectDelim(dec, '{'); err != nil {
		return errors.SchemaMismatch(d.Name, "corpus is not a JSON object of dialogues")
	}
	if !dec.More() {
		// An empty corpus has nothing to disagree with the schema.
		return nil
	}
	if _, err := dec.Token(); err != nil { // dialogue key
		return errors.SchemaMismatch(d.Name, "malformed dialogue key: "+err.Error())
	}
	var dlg dialogue
	if err := dec.Decode(&dlg); err != nil {
		return errors.SchemaMismatch(d.Name, "malformed dialogue: "+err.Error())
	}
	if len(dlg.Turns) == 0 {
		return errors.SchemaMismatch(d.Name, "dialogue has no turns")
	}

	_, text, _ := schemaFields(d.Schema)
	if len(text) == 0 {
		return errors.SchemaMismatch(d.Name, "schema declares no text fields")
	}
	var missing []string
	for _, field := range text {
		if _, ok := dlg.Turns[0][field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return errors.SchemaMismatch(d.Name, "missing fields: "+strings.Join(missing, ", "))
	}
	return nil
}

// Documents streams one document per turn, in file order.
func (a *ConversationAdapter) Documents(ctx context.Context, d registry.Descriptor) (Iterator, error) {
	f, err := os.Open(d.RawPath)
	if err != nil {
		return nil, errors.MissingPath(d.RawPath, err).WithDataset(d.Name)
	}

	dec := json.NewDecoder(f)
	if err := expectDelim(dec, '{'); err != nil {
		_ = f.Close()
		return nil, errors.SchemaMismatch(d.Name, "corpus is not a JSON object of dialogues")
	}

	idField, textFields, metaFields := schemaFields(d.Schema)
	return &conversationIterator{
		ctx:        ctx,
		dataset:    d.Name,
		file:       f,
		dec:        dec,
		idField:    idField,
		textFields: textFields,
		metaFields: metaFields,
		seen:       make(seenIDs),
	}, nil
}

type conversationIterator struct {
	ctx        context.Context
	dataset    string
	file       *os.File
	dec        *json.Decoder
	idField    string
	textFields []string
	metaFields []string
	seen       seenIDs

	current    dialogue
	currentKey string
	turnIdx    int
	done       bool
}

func (it *conversationIterator) Next() (*Document, error) {
	if it.done {
		return nil, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}

	// Advance to the next dialogue when the current one is exhausted.
	for it.turnIdx >= len(it.current.Turns) {
		if !it.dec.More() {
			it.done = true
			return nil, io.EOF
		}
		keyTok, err := it.dec.Token()
		if err != nil {
			return nil, errors.SchemaMismatch(it.dataset, "malformed dialogue key: "+err.Error())
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.SchemaMismatch(it.dataset, "dialogue key is not a string")
		}
		var dlg dialogue
		if err := it.dec.Decode(&dlg); err != nil {
			return nil, errors.SchemaMismatch(it.dataset, "malformed dialogue: "+err.Error())
		}
		it.currentKey = key
		it.current = dlg
		it.turnIdx = 0
	}

	turn := it.current.Turns[it.turnIdx]
	idx := it.turnIdx
	it.turnIdx++

	id := ""
	if it.idField != "" {
		id = fieldString(turn[it.idField])
	}
	if id == "" {
		// Deterministic fallback: dialogue key plus 1-based turn number.
		id = it.currentKey + "_" + strconv.Itoa(idx+1)
	}
	if err := it.seen.check(it.dataset, id); err != nil {
		return nil, err
	}

	var parts []string
	for _, field := range it.textFields {
		if v := fieldString(turn[field]); v != "" {
			parts = append(parts, v)
		}
	}

	meta := map[string]string{
		"dialogue": it.currentKey,
		"turn":     strconv.Itoa(idx + 1),
	}
	for _, field := range it.metaFields {
		if v := fieldString(turn[field]); v != "" {
			meta[field] = v
		}
	}

	return &Document{
		ID:       id,
		Contents: strings.Join(parts, "\n"),
		Metadata: meta,
	}, nil
}

func (it *conversationIterator) Close() error {
	return it.file.Close()
}

// expectDelim consumes one token and checks it is the given delimiter.
func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || rune(delim) != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// fieldString renders a raw JSON field value as a string.
func fieldString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
