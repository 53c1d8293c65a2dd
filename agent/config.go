// Controller configuration types.
//
// Information Hiding:
// - Configuration validation logic hidden
// - Default values hidden

package agent

import (
	"errors"
	"fmt"
	"time"
)

// Config holds controller configuration.
type Config struct {
	// ToolItem is used on FuelItem to light a fire.
	ToolItem string
	FuelItem string

	// ExpectedOutcome is the yes/no question asked after acting.
	ExpectedOutcome string

	// Target is the number of fires to make. Zero means until the fuel runs out.
	Target int

	// MaxConsecutiveFailures is the ceiling that aborts the run.
	MaxConsecutiveFailures int

	// EmptyConfirmations is how many consecutive "fuel absent" verdicts end the run.
	EmptyConfirmations int

	SettleDuration time.Duration
	RecoveryPause  time.Duration
	BetweenFires   time.Duration

	// StepAwayX and StepAwayY locate the step-away click as fractions of the window.
	StepAwayX float64
	StepAwayY float64

	// RefreshWindow forces the first resolve to re-enumerate windows.
	RefreshWindow bool
}

// DefaultConfig returns the stock firemaking configuration.
func DefaultConfig() Config {
	return Config{
		ToolItem:               "tinderbox",
		FuelItem:               "logs",
		ExpectedOutcome:        "a fire was created",
		MaxConsecutiveFailures: 3,
		EmptyConfirmations:     2,
		SettleDuration:         2 * time.Second,
		RecoveryPause:          2 * time.Second,
		BetweenFires:           500 * time.Millisecond,
		StepAwayX:              0.45,
		StepAwayY:              0.55,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.ToolItem == "" || c.FuelItem == "" {
		errs = append(errs, errors.New("tool and fuel item names are required"))
	}
	if c.ExpectedOutcome == "" {
		errs = append(errs, errors.New("expected outcome is required"))
	}
	if c.Target < 0 {
		errs = append(errs, fmt.Errorf("target must be >= 0, got %d", c.Target))
	}
	if c.MaxConsecutiveFailures <= 0 {
		errs = append(errs, fmt.Errorf("max consecutive failures must be > 0, got %d", c.MaxConsecutiveFailures))
	}
	if c.EmptyConfirmations <= 0 {
		errs = append(errs, fmt.Errorf("empty inventory confirmations must be > 0, got %d", c.EmptyConfirmations))
	}
	// Each unconfirmed empty verdict counts as a failure, so a larger quorum
	// would abort before the inventory could ever be confirmed empty.
	if c.EmptyConfirmations > c.MaxConsecutiveFailures && c.MaxConsecutiveFailures > 0 {
		errs = append(errs, fmt.Errorf("empty inventory confirmations (%d) must not exceed max consecutive failures (%d)",
			c.EmptyConfirmations, c.MaxConsecutiveFailures))
	}
	if c.SettleDuration < 0 || c.RecoveryPause < 0 || c.BetweenFires < 0 {
		errs = append(errs, errors.New("pauses must not be negative"))
	}
	if c.StepAwayX < 0 || c.StepAwayX >= 1 || c.StepAwayY < 0 || c.StepAwayY >= 1 {
		errs = append(errs, fmt.Errorf("step-away point (%.2f, %.2f) must lie inside the window", c.StepAwayX, c.StepAwayY))
	}
	return errors.Join(errs...)
}
