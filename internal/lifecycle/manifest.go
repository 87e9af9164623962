package lifecycle

import (
	"encoding/json"
	"os"
	"time"
)

// manifest is the sidecar metadata record written next to each
// canonical index directory. A restarted process recovers Ready/Failed
// status from it without rebuilding.
type manifest struct {
	Dataset    string    `json:"dataset"`
	ParamsHash string    `json:"params_hash"`
	DocCount   int       `json:"doc_count"`
	BuiltAt    time.Time `json:"built_at"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// manifestPath returns the sidecar location for an index directory.
func manifestPath(indexPath string) string {
	return indexPath + ".manifest.json"
}

// writeManifest writes the sidecar atomically (temp file + rename) so a
// crash never leaves a truncated record.
func writeManifest(indexPath string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := manifestPath(indexPath)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readManifest loads the sidecar for an index directory. Returns
// os.ErrNotExist when no sidecar is present.
func readManifest(indexPath string) (manifest, error) {
	data, err := os.ReadFile(manifestPath(indexPath))
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, err
	}
	return m, nil
}

// removeManifest deletes the sidecar, ignoring a missing file.
func removeManifest(indexPath string) {
	_ = os.Remove(manifestPath(indexPath))
	_ = os.Remove(manifestPath(indexPath) + ".tmp")
}
