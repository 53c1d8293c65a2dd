// Controller builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/richinex/firemaker/storage"
)

// Builder provides fluent configuration for creating controllers.
// Usage: agent.NewBuilder(skills, locator).Target(5).Build()
type Builder struct {
	skills  Skills
	windows Locator
	config  Config
	journal storage.Journal
	logger  *zap.Logger
	runID   string
}

// NewBuilder starts a controller over the given skills and window locator.
func NewBuilder(skills Skills, windows Locator) *Builder {
	return &Builder{
		skills:  skills,
		windows: windows,
		config:  DefaultConfig(),
	}
}

// Config replaces the whole configuration.
func (b *Builder) Config(cfg Config) *Builder {
	b.config = cfg
	return b
}

// Target sets the number of fires to make. Zero means until the fuel runs out.
func (b *Builder) Target(n int) *Builder {
	b.config.Target = n
	return b
}

// TestMode caps the run to one fire.
func (b *Builder) TestMode() *Builder {
	b.config.Target = 1
	return b
}

// RefreshWindow forces a window re-resolve before the first cycle.
func (b *Builder) RefreshWindow(enabled bool) *Builder {
	b.config.RefreshWindow = enabled
	return b
}

// Journal records transitions and outcomes.
func (b *Builder) Journal(j storage.Journal) *Builder {
	b.journal = j
	return b
}

// RunID fixes the run identifier. By default each run gets a new UUID.
func (b *Builder) RunID(id string) *Builder {
	b.runID = id
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and creates the controller.
func (b *Builder) Build() (*Controller, error) {
	if b.skills == nil || b.windows == nil {
		return nil, errors.New("controller needs skills and a window locator")
	}
	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := newController(b.skills, b.windows, b.config, b.journal, logger)
	if id := b.runID; id != "" {
		c.newID = func() string { return id }
	}
	return c, nil
}
