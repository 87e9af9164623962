// Package registry holds declarative descriptors for the known datasets.
// The registry is populated once at startup from configuration and is
// read-only afterwards except through Register/Deregister.
package registry

import (
	"sync"

	"github.com/convsearch/convdex/internal/errors"
)

// Family identifies a dataset family. Each family binds to one adapter
// implementation.
type Family string

const (
	// FamilyConversational covers dialogue corpora with per-turn records
	// (iKAT, INSCIT conversation files).
	FamilyConversational Family = "conversational-dialogue"
	// FamilyPassage covers flat passage collections (wiki-style JSONL or TSV).
	FamilyPassage Family = "wiki-passage"
)

// FieldType is the semantic type of a corpus field.
type FieldType string

const (
	FieldTypeID   FieldType = "id"
	FieldTypeText FieldType = "text"
	FieldTypeMeta FieldType = "meta"
)

// Descriptor describes one dataset. Descriptors are immutable: they are
// created at registry load time and never mutated.
type Descriptor struct {
	// Name uniquely identifies the dataset.
	Name string
	// Family selects the adapter implementation.
	Family Family
	// RawPath is the location of the raw corpus (file or directory).
	RawPath string
	// IndexPath is the canonical location of the built index.
	IndexPath string
	// Schema maps raw field names to their semantic types.
	Schema map[string]FieldType
	// AdapterKind optionally overrides the family's default adapter
	// (e.g. "tsv" for passage corpora shipped as TSV).
	AdapterKind string
}

// Registry is the process-wide set of registered datasets.
// All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Descriptor
	order  []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds a descriptor. It fails with a duplicate-dataset error if
// the name is already present.
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[d.Name]; ok {
		return errors.DuplicateDataset(d.Name)
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Deregister removes a dataset. It fails with an unknown-dataset error
// if the name is not present.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[name]; !ok {
		return errors.UnknownDataset(name)
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the descriptor for name, or an unknown-dataset error.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byName[name]
	if !ok {
		return Descriptor{}, errors.UnknownDataset(name)
	}
	return d, nil
}

// List returns all descriptors in registration order. The returned slice
// is a snapshot: iterating it is restartable and unaffected by concurrent
// Register/Deregister calls.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered datasets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
