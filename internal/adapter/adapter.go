// Package adapter normalizes heterogeneous dataset corpora into the
// canonical document shape the index builder consumes. One adapter
// implementation exists per dataset family; the descriptor's schema maps
// raw field names onto their semantic roles.
package adapter

import (
	"context"
	"sort"

	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

// Document is one normalized unit handed to the index builder.
// Documents are streamed, not buffered in bulk.
type Document struct {
	ID       string            `json:"id"`
	Contents string            `json:"contents"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Iterator streams documents in source order. A sequence is consumed
// once and cannot be rewound; a fresh Documents call re-reads from
// source with identical ordering. Next returns io.EOF after the last
// document.
type Iterator interface {
	Next() (*Document, error)
	Close() error
}

// Adapter translates one dataset family's native record shape into
// Documents.
type Adapter interface {
	// ValidateSchema checks that the fields required by the descriptor's
	// schema are present in a sample of the raw corpus. It is
	// side-effect-free and fails with a schema-mismatch error.
	ValidateSchema(d registry.Descriptor) error

	// Documents opens a fresh document stream for the descriptor's raw
	// corpus. A duplicate doc id in the raw input fails the stream with
	// a duplicate-doc-id error before the duplicate is emitted; silent
	// dedup would corrupt retrieval evaluation.
	Documents(ctx context.Context, d registry.Descriptor) (Iterator, error)
}

// For returns the adapter bound to the descriptor's family, honoring an
// AdapterKind override.
func For(d registry.Descriptor) (Adapter, error) {
	switch d.Family {
	case registry.FamilyConversational:
		return &ConversationAdapter{}, nil
	case registry.FamilyPassage:
		if d.AdapterKind == "tsv" {
			return &PassageAdapter{tsv: true}, nil
		}
		return &PassageAdapter{}, nil
	default:
		return nil, errors.New(errors.ErrCodeConfigInvalid,
			"no adapter for family "+string(d.Family), nil).WithDataset(d.Name)
	}
}

// schemaFields splits a schema into its id field and sorted text/meta
// field names. Sorting keeps contents assembly deterministic regardless
// of map iteration order.
func schemaFields(schema map[string]registry.FieldType) (id string, text, meta []string) {
	for name, ft := range schema {
		switch ft {
		case registry.FieldTypeID:
			id = name
		case registry.FieldTypeText:
			text = append(text, name)
		case registry.FieldTypeMeta:
			meta = append(meta, name)
		}
	}
	sort.Strings(text)
	sort.Strings(meta)
	return id, text, meta
}

// seenIDs tracks emitted doc ids for duplicate detection.
type seenIDs map[string]struct{}

func (s seenIDs) check(dataset, id string) error {
	if _, dup := s[id]; dup {
		return errors.DuplicateDocID(dataset, id)
	}
	s[id] = struct{}{}
	return nil
}
