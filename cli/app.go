// Component wiring shared by the commands.
//
// Information Hiding:
// - Which store backs the window record and the journal
// - Provider construction from settings
// - Lifetime of the debug screenshot writer and database handles

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/richinex/firemaker/agent"
	"github.com/richinex/firemaker/config"
	"github.com/richinex/firemaker/desktop"
	"github.com/richinex/firemaker/humanoid"
	"github.com/richinex/firemaker/llm"
	"github.com/richinex/firemaker/observability"
	"github.com/richinex/firemaker/skills"
	"github.com/richinex/firemaker/storage"
	"github.com/richinex/firemaker/window"
)

// Options holds CLI execution options.
type Options struct {
	ConfigFile string
	Provider   string
	Verbose    bool

	// Deps replaces external collaborators. Zero fields use X11 and the
	// configured provider.
	Deps Deps
}

// Deps are the collaborators that touch the desktop or the network.
type Deps struct {
	Lister   window.Lister
	Frames   skills.FrameSource
	Input    humanoid.Backend
	Provider llm.Provider
	Console  zapcore.WriteSyncer
	Out      io.Writer
}

type app struct {
	settings config.Settings
	runID    string
	logger   *zap.Logger
	out      io.Writer

	locator *window.Locator
	library *skills.Library
	client  *llm.Client
	journal *storage.SqliteStorage
	saver   *llm.FrameSaver

	closers []func() error
}

// setup builds every component a run needs.
func setup(opts Options) (*app, error) {
	a, err := newApp(opts)
	if err != nil {
		return nil, err
	}
	if err := a.wire(opts.Deps); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// newApp loads settings and opens the logger and stores.
func newApp(opts Options) (*app, error) {
	overrides := []config.Override{config.WithProvider(opts.Provider)}
	if opts.Verbose {
		overrides = append(overrides, config.WithValue("logger.level", "debug"))
	}
	settings, err := config.New(opts.ConfigFile, overrides...)
	if err != nil {
		return nil, err
	}

	a := &app{settings: settings, runID: uuid.NewString(), out: opts.Deps.Out}
	if a.out == nil {
		a.out = os.Stdout
	}

	console := opts.Deps.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}
	a.logger, err = observability.New(settings.Logger, console, a.runID)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { observability.Sync(a.logger); return nil })

	if err := a.openStores(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire connects the desktop, the vision provider and the skills.
func (a *app) wire(deps Deps) error {
	settings := a.settings
	provider := deps.Provider
	if provider == nil {
		var err error
		provider, err = buildProvider(settings.VLM)
		if err != nil {
			return err
		}
	}

	lister, frames, backend := deps.Lister, deps.Frames, deps.Input
	if lister == nil || backend == nil {
		display, err := desktop.Open()
		if err != nil {
			return err
		}
		a.closers = append([]func() error{display.Close}, a.closers...)
		if lister == nil {
			lister = desktop.NewWindowLister(display)
		}
		if backend == nil {
			backend = display
		}
	}
	if frames == nil {
		frames = desktop.NewScreenCapturer()
	}

	var store window.Store
	if settings.Window.Store == "sqlite" {
		store = a.journal
	} else {
		store = storage.NewFileWindowStore(settings.Window.File)
	}
	a.locator = window.NewLocator(settings.Game.WindowTitle, lister, store, a.logger)

	clientCfg := llm.ClientConfig{Timeout: settings.VLM.Timeout, MinInterval: settings.VLM.MinInterval}
	if settings.Debug.SaveScreenshots {
		a.saver = llm.NewFrameSaver(settings.Debug.ScreenshotDir, a.runID, 8, a.logger)
		clientCfg.Frames = a.saver
		// Close the saver before syncing the logger so its last errors are flushed.
		a.closers = append([]func() error{a.saver.Close}, a.closers...)
	}
	a.client = llm.NewClient(provider, clientCfg, a.logger)

	hcfg := humanoid.DefaultConfig()
	hcfg.Move = settings.Humanoid.Move()
	hcfg.Hold = settings.Humanoid.Hold()
	hcfg.StepsPerSecond = settings.Humanoid.StepsPerSecond
	input := humanoid.New(backend, hcfg, a.logger)

	scfg, err := skillsConfig(settings)
	if err != nil {
		return err
	}
	a.library = skills.New(a.client, input, frames, a.locator, scfg, a.logger)
	return nil
}

// openStores opens the SQLite database when the journal or the window store needs it.
func (a *app) openStores() error {
	s := a.settings
	if !s.Journal.Enabled && s.Window.Store != "sqlite" {
		return nil
	}
	db, err := storage.OpenSqlite(s.Journal.Path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	a.journal = db
	a.closers = append([]func() error{db.Close}, a.closers...)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: cleanup failed:", err)
	}
}

func (a *app) agentConfig() agent.Config {
	s := a.settings.Agent
	return agent.Config{
		ToolItem:               s.ToolItem,
		FuelItem:               s.FuelItem,
		ExpectedOutcome:        s.ExpectedOutcome,
		MaxConsecutiveFailures: s.MaxConsecutiveFailures,
		EmptyConfirmations:     s.EmptyInventoryConfirmations,
		SettleDuration:         s.SettleDuration,
		RecoveryPause:          s.RecoveryPause,
		BetweenFires:           s.BetweenFires,
		StepAwayX:              s.StepAwayX,
		StepAwayY:              s.StepAwayY,
	}
}

func buildProvider(cfg config.VLMConfig) (llm.Provider, error) {
	pt, err := llm.ParseProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}
	key, err := config.APIKeyFor(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return llm.NewProviderBuilder(pt).
		Model(cfg.Model).
		MaxTokens(cfg.MaxTokens).
		Temperature(float32(cfg.Temperature)).
		BaseURL(cfg.BaseURL).
		APIKey(key)
}

func skillsConfig(s config.Settings) (skills.Config, error) {
	mode, err := skills.ParseLocateMode(s.Skills.LocateMode)
	if err != nil {
		return skills.Config{}, err
	}
	grid := skills.Grid{
		OriginX:    s.Inventory.OriginX,
		OriginY:    s.Inventory.OriginY,
		SlotWidth:  s.Inventory.SlotWidth,
		SlotHeight: s.Inventory.SlotHeight,
		Columns:    s.Inventory.Columns,
	}
	if mode == skills.LocateSlot {
		if err := grid.Validate(); err != nil {
			return skills.Config{}, err
		}
	}
	return skills.Config{
		Jitter:        s.Skills.Jitter,
		BeforeClick:   s.Skills.BeforeClick(),
		AfterClick:    s.Skills.AfterClick(),
		BetweenClicks: s.Skills.BetweenClicks,
		Mode:          mode,
		Grid:          grid,
		Items:         []string{s.Agent.ToolItem, s.Agent.FuelItem},
		MaxRetries:    s.VLM.MaxRetries,
		RetryBase:     s.VLM.RetryBase,
	}, nil
}
