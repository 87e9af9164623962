package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// DatasetStatus is one row of `convdex status` output.
type DatasetStatus struct {
	Dataset    string    `json:"dataset"`
	Family     string    `json:"family"`
	Status     string    `json:"status"`
	DocCount   int       `json:"doc_count"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
	IndexPath  string    `json:"index_path"`
	ParamsHash string    `json:"params_hash,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// StatusRenderer displays dataset index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// RenderJSON writes the rows as a JSON array.
func (r *StatusRenderer) RenderJSON(rows []DatasetStatus) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// Render writes a human-readable status listing.
func (r *StatusRenderer) Render(rows []DatasetStatus) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(r.out, "no datasets registered")
		return err
	}
	for _, row := range rows {
		_, _ = fmt.Fprintf(r.out, "%s  %s\n",
			r.styles.Header(row.Dataset), r.styles.Dim("("+row.Family+")"))
		_, _ = fmt.Fprintf(r.out, "  status:  %s\n", r.styleStatus(row.Status))
		_, _ = fmt.Fprintf(r.out, "  index:   %s\n", row.IndexPath)
		if row.DocCount > 0 {
			_, _ = fmt.Fprintf(r.out, "  docs:    %d\n", row.DocCount)
		}
		if !row.BuiltAt.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  built:   %s\n", formatTime(row.BuiltAt))
		}
		if row.Error != "" {
			_, _ = fmt.Fprintf(r.out, "  error:   %s\n", r.styles.Error(row.Error))
		}
		_, _ = fmt.Fprintln(r.out)
	}
	return nil
}

func (r *StatusRenderer) styleStatus(s string) string {
	switch s {
	case "ready":
		return r.styles.Success(s)
	case "failed":
		return r.styles.Error(s)
	case "stale", "building":
		return r.styles.Warning(s)
	default:
		return s
	}
}

// formatTime renders timestamps with a relative suffix for recent ones.
func formatTime(t time.Time) string {
	abs := t.Local().Format("2006-01-02 15:04:05")
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return abs + " (just now)"
	case age < time.Hour:
		return fmt.Sprintf("%s (%dm ago)", abs, int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%s (%dh ago)", abs, int(age.Hours()))
	default:
		return abs
	}
}
