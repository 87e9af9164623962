package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/registry"
)

func passageDescriptor(name, rawPath string) registry.Descriptor {
	return registry.Descriptor{
		Name:    name,
		Family:  registry.FamilyPassage,
		RawPath: rawPath,
		Schema: map[string]registry.FieldType{
			"id":       registry.FieldTypeID,
			"contents": registry.FieldTypeText,
			"title":    registry.FieldTypeMeta,
		},
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPassageJSONL(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passages.jsonl",
		`{"id": "p1", "contents": "lucene is a search library", "title": "Lucene"}
{"id": "p2", "contents": "bm25 ranks by term frequency", "title": "BM25"}
`)
	d := passageDescriptor("wiki", path)
	a, err := For(d)
	require.NoError(t, err)
	require.NoError(t, a.ValidateSchema(d))

	it, err := a.Documents(context.Background(), d)
	require.NoError(t, err)
	docs := collect(t, it)

	require.Len(t, docs, 2)
	assert.Equal(t, "p1", docs[0].ID)
	assert.Equal(t, "lucene is a search library", docs[0].Contents)
	assert.Equal(t, "Lucene", docs[0].Metadata["title"])
	assert.Equal(t, "p2", docs[1].ID)
}

func TestPassageDirectoryNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.jsonl", `{"id": "p3", "contents": "third"}`+"\n")
	writeFile(t, dir, "a.jsonl", `{"id": "p1", "contents": "first"}
{"id": "p2", "contents": "second"}
`)
	d := passageDescriptor("wiki", dir)

	a := &PassageAdapter{}
	it, err := a.Documents(context.Background(), d)
	require.NoError(t, err)
	docs := collect(t, it)

	require.Len(t, docs, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})
}

func TestPassageDuplicateID(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passages.jsonl",
		`{"id": "p1", "contents": "one"}
{"id": "p2", "contents": "two"}
{"id": "p1", "contents": "three"}
`)
	d := passageDescriptor("toy", path)

	a := &PassageAdapter{}
	it, err := a.Documents(context.Background(), d)
	require.NoError(t, err)
	defer it.Close()

	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	require.NoError(t, err)
	_, err = it.Next()
	require.Error(t, err)
	assert.True(t, errors.IsDuplicateDocID(err))
}

func TestPassageTSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "corpus.tsv",
		"id\tcontents\ttitle\n"+
			"w1\tparis is the capital of france\tParis\n"+
			"w2\ttokyo is the capital of japan\tTokyo\n")
	d := passageDescriptor("inscit-wiki", path)
	d.AdapterKind = "tsv"

	a, err := For(d)
	require.NoError(t, err)
	require.NoError(t, a.ValidateSchema(d))

	it, err := a.Documents(context.Background(), d)
	require.NoError(t, err)
	docs := collect(t, it)

	require.Len(t, docs, 2)
	assert.Equal(t, "w1", docs[0].ID)
	assert.Equal(t, "paris is the capital of france", docs[0].Contents)
	assert.Equal(t, "Paris", docs[0].Metadata["title"])
}

func TestPassageTSVMissingColumn(t *testing.T) {
	path := writeFile(t, t.TempDir(), "corpus.tsv", "id\ttext\nw1\thello\n")
	d := passageDescriptor("inscit-wiki", path)
	d.AdapterKind = "tsv"

	a := &PassageAdapter{tsv: true}
	err := a.ValidateSchema(d)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
	assert.Contains(t, err.Error(), "contents")
}

func TestPassageValidateMissingField(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passages.jsonl", `{"docid": "p1", "body": "text"}`+"\n")
	d := passageDescriptor("wiki", path)

	a := &PassageAdapter{}
	err := a.ValidateSchema(d)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaMismatch(err))
}

func TestPassageEmptyDirectory(t *testing.T) {
	d := passageDescriptor("wiki", t.TempDir())
	a := &PassageAdapter{}
	_, err := a.Documents(context.Background(), d)
	require.Error(t, err)
	assert.True(t, errors.IsMissingPath(err))
}

func TestForUnknownFamily(t *testing.T) {
	_, err := For(registry.Descriptor{Name: "x", Family: "mystery"})
	require.Error(t, err)
}
