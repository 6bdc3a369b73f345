package filtering

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/contract"
)

type requiredFieldsFilter struct {
	disabled bool
	reason   string
}

// NewRequiredFields creates a filter that removes entries missing a title or a locator.
func NewRequiredFields() Filter {
	return &requiredFieldsFilter{}
}

func (f *requiredFieldsFilter) Name() string { return "required_fields" }

func (f *requiredFieldsFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *requiredFieldsFilter) IsEnabled() bool { return !f.disabled }

func (f *requiredFieldsFilter) Validate() error { return nil }

func (f *requiredFieldsFilter) Apply(_ context.Context, deps Deps, c contract.Catalogue) (contract.Catalogue, Step, error) {
	initial := len(c)
	kept, removed := exclude(c, func(e contract.CatalogueEntry) bool { return !e.Valid() })
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Warn("excluding catalogue entries without title or url",
			zap.Strings("excluded_entries", removed),
			zap.Int("entries_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(removed), Left: len(kept)}, nil
}

func (f *requiredFieldsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

// categoriesFilter is configured once at construction and only read afterwards.
type categoriesFilter struct {
	categories map[string]struct{}
	names      []string
}

// NewCategories creates a filter that removes entries by the given categories, case-insensitively.
func NewCategories(categories []string) Filter {
	f := &categoriesFilter{categories: make(map[string]struct{})}
	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category == "" {
			continue
		}
		f.categories[strings.ToLower(category)] = struct{}{}
		f.names = append(f.names, category)
	}
	return f
}

func (f *categoriesFilter) Name() string { return "categories" }

func (f *categoriesFilter) Disable(string) {}

func (f *categoriesFilter) IsEnabled() bool { return true }

func (f *categoriesFilter) Validate() error { return nil }

func (f *categoriesFilter) Apply(_ context.Context, deps Deps, c contract.Catalogue) (contract.Catalogue, Step, error) {
	initial := len(c)
	if len(f.categories) == 0 {
		return c, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept, removed := exclude(c, func(e contract.CatalogueEntry) bool {
		_, found := f.categories[strings.ToLower(strings.TrimSpace(e.Category))]
		return found
	})
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding catalogue entries by category",
			zap.Strings("excluded_categories", f.names),
			zap.Strings("excluded_entries", removed),
			zap.Int("entries_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(removed), Left: len(kept)}, nil
}

func (f *categoriesFilter) Status() Status {
	details := map[string]string{}
	if len(f.names) > 0 {
		details["categories"] = strings.Join(f.names, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes entries whose titles are listed in the file at path.
// An empty path disables the step's effect.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

// Validate checks that the exclude file can be read.
func (f *excludeFileFilter) Validate() error {
	if f.path == "" {
		return nil
	}
	if _, err := readExcludedTitles(f.path); err != nil {
		return fmt.Errorf("reading exclude file: %w", err)
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, c contract.Catalogue) (contract.Catalogue, Step, error) {
	initial := len(c)
	if f.path == "" {
		return c, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	titles, err := readExcludedTitles(f.path)
	if err != nil {
		return c, Step{}, fmt.Errorf("getting excluded titles from file: %w", err)
	}

	kept, removed := exclude(c, func(e contract.CatalogueEntry) bool {
		_, found := titles[strings.ToLower(strings.TrimSpace(e.Title))]
		return found
	})
	if deps.Logger != nil && len(removed) > 0 {
		deps.Logger.Info("excluding catalogue entries based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_entries", removed),
			zap.Int("entries_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(removed), Left: len(kept)}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}

// readExcludedTitles reads one title per line. Blank lines and lines starting with # are ignored.
func readExcludedTitles(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	titles := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		titles[strings.ToLower(line)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return titles, nil
}
