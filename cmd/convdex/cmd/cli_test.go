package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convsearch/convdex/pkg/version"
)

// setupWorkspace writes a storage root with a small JSONL corpus and a
// config using the embedded bleve builder, and points the global
// --config flag at it for the duration of the test.
func setupWorkspace(t *testing.T) string {
	t.Helper()

	root := filepath.Join(t.TempDir(), "store")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "raw"), 0o755))

	corpus := "" +
		`{"id": "p1", "contents": "Conversational search over wiki passages."}` + "\n" +
		`{"id": "p2", "contents": "Query performance prediction for ranking."}` + "\n" +
		`{"id": "p3", "contents": "Dense and sparse retrieval baselines."}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "raw", "passages.jsonl"), []byte(corpus), 0o644))

	cfgPath := filepath.Join(filepath.Dir(root), "convdex.yaml")
	cfgBody := fmt.Sprintf(`
storage:
  root: %s
builder:
  backend: bleve
datasets:
  - name: passages
    family: wiki-passage
    adapter: jsonl
    raw_path: raw/passages.jsonl
    index_path: indexes/passages
    schema:
      id: id
      contents: text
`, root)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0o644))

	old := configPath
	configPath = cfgPath
	t.Cleanup(func() { configPath = old })

	return root
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestDatasetsCmd(t *testing.T) {
	setupWorkspace(t)

	out, err := runCmd(t, newDatasetsCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "passages")
	assert.Contains(t, out, "wiki-passage")
	assert.Contains(t, out, "raw/passages.jsonl")
}

func TestDatasetsCmd_JSON(t *testing.T) {
	setupWorkspace(t)

	out, err := runCmd(t, newDatasetsCmd(), "--json")
	require.NoError(t, err)

	var rows []datasetRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "passages", rows[0].Name)
	assert.Equal(t, "jsonl", rows[0].Adapter)
}

func TestEnsureCmd_BuildsIndex(t *testing.T) {
	root := setupWorkspace(t)

	out, err := runCmd(t, newEnsureCmd(), "passages")
	require.NoError(t, err)
	assert.Contains(t, out, "ready: passages")
	assert.Contains(t, out, "3 docs")

	assert.DirExists(t, filepath.Join(root, "indexes", "passages"))
	assert.FileExists(t, filepath.Join(root, "indexes", "passages.manifest.json"))
}

func TestEnsureCmd_All(t *testing.T) {
	setupWorkspace(t)

	out, err := runCmd(t, newEnsureCmd(), "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "ready: passages")
}

func TestEnsureCmd_RequiresDatasetOrAll(t *testing.T) {
	setupWorkspace(t)

	_, err := runCmd(t, newEnsureCmd())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")
}

func TestEnsureCmd_UnknownDataset(t *testing.T) {
	setupWorkspace(t)

	_, err := runCmd(t, newEnsureCmd(), "nope")
	require.Error(t, err)
}

func TestStatusCmd_RecoversAcrossInvocations(t *testing.T) {
	setupWorkspace(t)

	_, err := runCmd(t, newEnsureCmd(), "passages")
	require.NoError(t, err)

	// Fresh command, fresh app: ready state comes from the manifest.
	out, err := runCmd(t, newStatusCmd(), "--json")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "ready", rows[0]["status"])
	assert.Equal(t, float64(3), rows[0]["doc_count"])
}

func TestStatusCmd_Missing(t *testing.T) {
	setupWorkspace(t)

	out, err := runCmd(t, newStatusCmd(), "passages")
	require.NoError(t, err)
	assert.Contains(t, out, "missing")
}

func TestInvalidateCmd(t *testing.T) {
	root := setupWorkspace(t)

	_, err := runCmd(t, newEnsureCmd(), "passages")
	require.NoError(t, err)

	out, err := runCmd(t, newInvalidateCmd(), "passages")
	require.NoError(t, err)
	assert.Contains(t, out, "invalidated: passages")
	assert.NoDirExists(t, filepath.Join(root, "indexes", "passages"))
}

func TestInvalidateCmd_NothingToInvalidate(t *testing.T) {
	setupWorkspace(t)

	_, err := runCmd(t, newInvalidateCmd(), "passages")
	require.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	setupWorkspace(t)

	out, err := runCmd(t, newValidateCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "ok: passages")
}

func TestValidateCmd_MissingCorpus(t *testing.T) {
	root := setupWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(root, "raw", "passages.jsonl")))

	out, err := runCmd(t, newValidateCmd())
	require.Error(t, err)
	assert.Contains(t, out, "fail: passages")
}

func TestHistoryCmd(t *testing.T) {
	setupWorkspace(t)

	_, err := runCmd(t, newEnsureCmd(), "passages")
	require.NoError(t, err)

	out, err := runCmd(t, newHistoryCmd(), "--json")
	require.NoError(t, err)

	var rows []historyRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "passages", rows[0].Dataset)
	assert.Equal(t, "ready", rows[0].Status)
	assert.Equal(t, 3, rows[0].DocCount)
}

func TestHistoryCmd_Empty(t *testing.T) {
	setupWorkspace(t)

	out, err := runCmd(t, newHistoryCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "no builds recorded")
}

func TestVersionCmd_DefaultOutput(t *testing.T) {
	out, err := runCmd(t, newVersionCmd())
	require.NoError(t, err)
	assert.Contains(t, out, "convdex")
	assert.Contains(t, out, version.Version)
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	out, err := runCmd(t, newVersionCmd(), "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info["version"])
	assert.Contains(t, info, "go_version")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"datasets", "ensure", "invalidate", "status", "validate", "history", "watch", "version"} {
		sub, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}
