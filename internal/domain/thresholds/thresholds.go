// Package thresholds holds the signal decision levels and their
// regime-adaptive resolution. Base levels come from configuration; the
// effective levels used on each bar are derived from the base set and
// the current regime, never mutated in place.
package thresholds

import (
	"fmt"

	"github.com/perpsignal/crashwatch/internal/domain/regime"
)

// Set is one complete group of decision levels. EntryTrend and
// EntryCrash gate entries; ExitCrash and ExitTrend trigger exits.
type Set struct {
	EntryTrend float64 `json:"entry_trend" yaml:"entry_trend" default:"0.50"`
	EntryCrash float64 `json:"entry_crash" yaml:"entry_crash" default:"0.35"`
	ExitCrash  float64 `json:"exit_crash" yaml:"exit_crash" default:"0.40"`
	ExitTrend  float64 `json:"exit_trend" yaml:"exit_trend" default:"0.30"`
}

// Default returns the base levels used when configuration is silent.
func Default() Set {
	return Set{
		EntryTrend: 0.50,
		EntryCrash: 0.35,
		ExitCrash:  0.40,
		ExitTrend:  0.30,
	}
}

// Validate checks every level lies in [0,1] and the exit trend level
// does not sit above the entry trend level, which would make every
// fresh entry an immediate exit.
func (s Set) Validate() error {
	for name, v := range map[string]float64{
		"entry_trend": s.EntryTrend,
		"entry_crash": s.EntryCrash,
		"exit_crash":  s.ExitCrash,
		"exit_trend":  s.ExitTrend,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("thresholds: %s = %v, want [0,1]", name, v)
		}
	}
	if s.ExitTrend > s.EntryTrend {
		return fmt.Errorf("thresholds: exit_trend %v above entry_trend %v", s.ExitTrend, s.EntryTrend)
	}
	return nil
}

// Regime multipliers. Bulls get a slightly tighter crash exit so the
// book is flattened early into topping volatility; bears tolerate more
// crash probability because elevated readings are the bear baseline.
// Crash mode halves the crash exit and raises the trend exit, forcing
// positions out fast.
const (
	bullExitCrashScale  = 0.85
	bearExitCrashScale  = 1.15
	crashExitCrashScale = 0.50
	crashExitTrendScale = 1.50
)

// Resolve derives the effective levels for r from the base set. The
// base set is never modified. In the crash regime the raised trend
// exit is capped at the entry level so Validate still holds for the
// resolved set.
func Resolve(base Set, r regime.Regime) Set {
	out := base
	switch r {
	case regime.Bull:
		out.ExitCrash = base.ExitCrash * bullExitCrashScale
	case regime.Bear:
		out.ExitCrash = base.ExitCrash * bearExitCrashScale
	case regime.Crash:
		out.ExitCrash = base.ExitCrash * crashExitCrashScale
		out.ExitTrend = base.ExitTrend * crashExitTrendScale
		if out.ExitTrend > out.EntryTrend {
			out.ExitTrend = out.EntryTrend
		}
	}
	if out.ExitCrash > 1 {
		out.ExitCrash = 1
	}
	return out
}
