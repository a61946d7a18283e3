package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nmoreno/facturia/internal/model"
)

// DirectorySource reads pending documents from a local drop directory.
// Files stay in place between cycles; deduplication downstream keeps
// already-committed documents from producing duplicate records, so a file
// left in the directory is simply reconsidered on the next pass.
type DirectorySource struct {
	logger *slog.Logger
	dir    string
	sender string
}

// NewDirectorySource creates a source over dir. sender is attached to every
// document so counterparty resolution has something to work with when the
// file itself yields none.
func NewDirectorySource(dir, sender string, logger *slog.Logger) *DirectorySource {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == "" {
		sender = "import@localhost"
	}
	return &DirectorySource{dir: dir, sender: sender, logger: logger}
}

// FetchDocuments lists the drop directory and returns one document per
// supported file. Unsupported extensions are skipped, unreadable files are
// logged and skipped.
func (s *DirectorySource) FetchDocuments(ctx context.Context) ([]model.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading drop directory %s: %w", s.dir, err)
	}

	var docs []model.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		origin, ok := originFor(name)
		if !ok {
			s.logger.Debug("skipping unsupported file", "file", name)
			continue
		}

		content, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable file", "file", name, "error", err)
			continue
		}
		if len(content) == 0 {
			s.logger.Debug("skipping empty file", "file", name)
			continue
		}

		docs = append(docs, model.Document{
			MessageID: "drop:" + name,
			Filename:  name,
			Sender:    s.sender,
			Subject:   "local import: " + name,
			Origin:    origin,
			Content:   content,
		})
	}

	s.logger.Info("drop directory scanned", "dir", s.dir, "documents", len(docs))
	return docs, nil
}

func originFor(name string) (model.DocumentOrigin, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return model.OriginPDF, true
	case ".jpg", ".jpeg", ".png":
		return model.OriginImage, true
	case ".csv":
		return model.OriginCSV, true
	default:
		return "", false
	}
}
