// Package filtering applies ordered hygiene steps to a catalogue snapshot before it is rendered.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/contract"
)

// Filter represents a single filtering step applied to a catalogue snapshot.
// Steps are configured at construction and are safe for concurrent Apply calls.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	// Validate checks the step's configuration. It never changes the step.
	Validate() error
	Apply(ctx context.Context, deps Deps, c contract.Catalogue) (contract.Catalogue, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludeCategories []string
	ExcludeFile       string
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard step order configured from cfg. cfg may be nil.
func Default(cfg *Config) []Filter {
	if cfg == nil {
		cfg = &Config{}
	}
	return []Filter{NewRequiredFields(), NewCategories(cfg.ExcludeCategories), NewExcludeFile(cfg.ExcludeFile)}
}

// Prepare builds the default steps from cfg and validates them once.
func Prepare(cfg *Config) ([]Filter, error) {
	steps := Default(cfg)
	for _, step := range steps {
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return steps, nil
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// It must be called before the steps are shared.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially. Neither the input snapshot nor the steps are modified.
func Run(ctx context.Context, deps Deps, steps []Filter, c contract.Catalogue) (contract.Catalogue, error) {
	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		c = next
	}

	return c, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// exclude returns a new catalogue without the entries matched by drop, and the dropped titles.
func exclude(c contract.Catalogue, drop func(contract.CatalogueEntry) bool) (contract.Catalogue, []string) {
	kept := make(contract.Catalogue, 0, len(c))
	var removed []string
	for _, entry := range c {
		if drop(entry) {
			removed = append(removed, entry.Title)
			continue
		}
		kept = append(kept, entry)
	}
	return kept, removed
}
