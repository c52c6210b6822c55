// Package alerts turns engine snapshots into operator notifications.
// It owns severity banding and message consolidation; delivery is
// behind the Notifier interface so transports are swappable and tests
// inject fakes.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/perpsignal/crashwatch/internal/engine"
)

// Severity bands a crash probability for display and routing.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Classify maps a crash probability onto a severity band.
func Classify(probability float64) Severity {
	switch {
	case probability >= 0.6:
		return SeverityCritical
	case probability >= 0.4:
		return SeverityHigh
	case probability >= 0.2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (s Severity) emoji() string {
	switch s {
	case SeverityCritical:
		return "🚨"
	case SeverityHigh:
		return "⚠️"
	case SeverityMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// Notifier delivers a rendered alert message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Dispatcher decides which snapshots alert, renders one consolidated
// message per cycle and rate limits repeats per symbol.
type Dispatcher struct {
	notifier  Notifier
	threshold float64
	cooldown  time.Duration

	lastSent map[string]time.Time
	now      func() time.Time
}

// NewDispatcher builds a dispatcher that alerts on snapshots whose
// crash probability is at or above threshold, at most once per
// cooldown per symbol.
func NewDispatcher(n Notifier, threshold float64, cooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		notifier:  n,
		threshold: threshold,
		cooldown:  cooldown,
		lastSent:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Dispatch filters, consolidates and delivers alerts for one
// evaluation cycle. Snapshots below the threshold, or still inside
// their per-symbol cooldown, are skipped. Returns the number of
// symbols alerted on.
func (d *Dispatcher) Dispatch(ctx context.Context, snaps []engine.Snapshot) (int, error) {
	due := make([]engine.Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.CrashProbability < d.threshold {
			continue
		}
		if last, ok := d.lastSent[s.Symbol]; ok && d.now().Sub(last) < d.cooldown {
			continue
		}
		due = append(due, s)
	}
	if len(due) == 0 {
		return 0, nil
	}

	if err := d.notifier.Notify(ctx, Render(due)); err != nil {
		return 0, fmt.Errorf("alerts: %w", err)
	}
	for _, s := range due {
		d.lastSent[s.Symbol] = d.now()
	}
	return len(due), nil
}

// Render builds one consolidated message for a set of alerting
// snapshots, highest probability first.
func Render(snaps []engine.Snapshot) string {
	ordered := make([]engine.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].CrashProbability > ordered[j].CrashProbability
	})

	var b strings.Builder
	b.WriteString("Crash risk report\n")
	for _, s := range ordered {
		sev := Classify(s.CrashProbability)
		fmt.Fprintf(&b, "%s %s [%s] risk %.0f%% regime %s price %.4g (%+.2f%%)",
			sev.emoji(), s.Symbol, sev, s.CrashProbability*100, s.Regime, s.Price, s.PctChange)
		if s.Exit {
			b.WriteString(" EXIT")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
