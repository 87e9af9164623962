package builder

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/convsearch/convdex/internal/errors"
)

// bleveBatchSize is how many documents are indexed per batch.
const bleveBatchSize = 500

// BleveBuilder is the embedded index backend. It consumes the staged
// JSONL corpus directly and writes a self-contained bleve index into
// the output directory, so no external toolchain is needed.
type BleveBuilder struct{}

// NewBleveBuilder creates an embedded bleve builder.
func NewBleveBuilder() *BleveBuilder {
	return &BleveBuilder{}
}

// bleveDoc is the indexed document shape.
type bleveDoc struct {
	Contents string `json:"contents"`
}

// Build implements Builder.
func (b *BleveBuilder) Build(ctx context.Context, req Request) (*Result, error) {
	files, err := stagedFiles(req.CorpusDir)
	if err != nil {
		return nil, errors.BuilderInvocation(req.Dataset, err)
	}

	mapping := bleve.NewIndexMapping()
	idx, err := bleve.New(req.OutputDir, mapping)
	if err != nil {
		return nil, errors.BuilderInvocation(req.Dataset, err)
	}
	defer idx.Close()

	start := time.Now()
	count := 0
	batch := idx.NewBatch()

	flush := func() error {
		if batch.Size() == 0 {
			return nil
		}
		if err := idx.Batch(batch); err != nil {
			return err
		}
		batch = idx.NewBatch()
		return nil
	}

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.BuilderInvocation(req.Dataset, err)
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxStagedLineBytes)
		for scanner.Scan() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				_ = f.Close()
				return nil, ctxErr
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var doc struct {
				ID       string `json:"id"`
				Contents string `json:"contents"`
			}
			if err := json.Unmarshal([]byte(line), &doc); err != nil {
				_ = f.Close()
				return nil, errors.BuilderInvocation(req.Dataset, err)
			}
			if err := batch.Index(doc.ID, bleveDoc{Contents: doc.Contents}); err != nil {
				_ = f.Close()
				return nil, errors.BuilderInvocation(req.Dataset, err)
			}
			count++
			if batch.Size() >= bleveBatchSize {
				if err := flush(); err != nil {
					_ = f.Close()
					return nil, errors.BuilderInvocation(req.Dataset, err)
				}
			}
		}
		if err := scanner.Err(); err != nil {
			_ = f.Close()
			return nil, errors.BuilderInvocation(req.Dataset, err)
		}
		_ = f.Close()
	}

	if err := flush(); err != nil {
		return nil, errors.BuilderInvocation(req.Dataset, err)
	}

	slog.Info("bleve index built",
		slog.String("dataset", req.Dataset),
		slog.Int("docs", count),
		slog.Duration("elapsed", time.Since(start)))
	return &Result{DocCount: count}, nil
}

const maxStagedLineBytes = 16 * 1024 * 1024

// stagedFiles lists JSONL files in the staged corpus dir, name-sorted.
func stagedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
