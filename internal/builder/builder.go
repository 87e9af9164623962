// Package builder drives index builders against a staged corpus
// directory. The primary builder is an external Lucene-style CLI run as
// a subprocess; an embedded bleve backend covers installations without
// a JVM. Builders are handed a corpus directory of JSONL documents with
// at least {id, contents} fields and produce a self-contained index
// directory; everything else about their output is opaque.
package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Params are the settings that determine whether an existing index is
// still current. Two builds with equal param hashes over the same
// corpus are interchangeable.
type Params struct {
	// Backend names the builder implementation ("exec" or "bleve").
	Backend string `json:"backend" yaml:"backend"`
	// Threads is the builder thread count.
	Threads int `json:"threads" yaml:"threads"`
	// StorePositions enables positional postings.
	StorePositions bool `json:"store_positions" yaml:"store_positions"`
	// StoreDocVectors enables stored document vectors.
	StoreDocVectors bool `json:"store_doc_vectors" yaml:"store_doc_vectors"`
	// StoreRaw stores the raw document alongside the postings.
	StoreRaw bool `json:"store_raw" yaml:"store_raw"`
}

// Hash returns a stable digest of the params, used for the staleness
// check on EnsureIndex.
func (p Params) Hash() string {
	canonical := fmt.Sprintf("backend=%s;threads=%d;positions=%t;docvectors=%t;raw=%t",
		p.Backend, p.Threads, p.StorePositions, p.StoreDocVectors, p.StoreRaw)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Request describes one build invocation.
type Request struct {
	// Dataset is the dataset name, for error attribution and logging.
	Dataset string
	// CorpusDir is the directory of normalized JSONL documents.
	CorpusDir string
	// OutputDir is the staging directory the index is written to.
	OutputDir string
	// Params are the build settings.
	Params Params
}

// Result reports a completed build.
type Result struct {
	// DocCount is the number of documents the builder indexed, when the
	// backend can report it; zero means unknown.
	DocCount int
}

// Builder materializes an index from a staged corpus. Build blocks
// until the index is complete or ctx is done; on context cancellation
// implementations must stop work and may leave partial output in
// OutputDir (the caller discards the staging directory).
type Builder interface {
	Build(ctx context.Context, req Request) (*Result, error)
}
