package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/contract"
)

const categoryMarker = "/programmes/programmes-in-"

// FilesStore reads scraped programme pages, one JSON object per file, from a directory tree.
// Files are re-read on every call.
type FilesStore struct {
	dir    string
	logger *zap.Logger
}

type scrapedPage struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	KeyFacts    struct {
		Fee       string `json:"fee"`
		Format    string `json:"format"`
		Location  string `json:"location"`
		StartDate string `json:"start_date"`
	} `json:"key_facts"`
}

// NewFilesStore creates a store rooted at dir.
func NewFilesStore(dir string, logger *zap.Logger) *FilesStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilesStore{dir: dir, logger: logger}
}

// ListEntries walks dir in lexical order. Non-object files and pages that recorded a
// scraping error are skipped.
func (s *FilesStore) ListEntries(ctx context.Context) (contract.Catalogue, error) {
	var entries contract.Catalogue

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".json") {
			return nil
		}

		entry, ok, err := readPage(path)
		if err != nil {
			return err
		}
		if !ok {
			s.logger.Debug("skipping programme page", zap.String("path", path))
			return nil
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read programme pages: %w", err)
	}

	return entries, nil
}

func readPage(path string) (contract.CatalogueEntry, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return contract.CatalogueEntry{}, false, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		// Not an object: lists and scalars are skipped, broken JSON is an error.
		if _, isSyntax := err.(*json.SyntaxError); isSyntax {
			return contract.CatalogueEntry{}, false, fmt.Errorf("parse %s: %w", path, err)
		}
		return contract.CatalogueEntry{}, false, nil
	}
	if probe == nil {
		return contract.CatalogueEntry{}, false, nil
	}
	if _, failed := probe["error"]; failed {
		return contract.CatalogueEntry{}, false, nil
	}

	var page scrapedPage
	if err := json.Unmarshal(data, &page); err != nil {
		return contract.CatalogueEntry{}, false, fmt.Errorf("parse %s: %w", path, err)
	}

	return contract.CatalogueEntry{
		Title:       strings.TrimSpace(page.Title),
		Category:    CategoryFromURL(page.URL),
		Description: page.Description,
		URL:         page.URL,
		Fee:         page.KeyFacts.Fee,
		Format:      page.KeyFacts.Format,
		Location:    page.KeyFacts.Location,
		StartDate:   page.KeyFacts.StartDate,
	}, true, nil
}

// CategoryFromURL derives a title-cased category from a .../programmes/programmes-in-<slug>/... URL.
func CategoryFromURL(url string) string {
	idx := strings.Index(url, categoryMarker)
	if idx < 0 {
		return ""
	}
	slug := url[idx+len(categoryMarker):]
	if end := strings.Index(slug, "/"); end >= 0 {
		slug = slug[:end]
	}

	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}
