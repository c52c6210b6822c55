package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/perpsignal/crashwatch/internal/domain/series"
)

// CSVSource reads bars from fixture files, one file per symbol named
// <symbol>.csv. Expected header: timestamp,open,high,low,close,volume
// with an optional trailing funding_rate column. Timestamps are unix
// seconds. Used for offline runs and backtests.
type CSVSource struct {
	dir string
}

// NewCSVSource builds a source rooted at dir.
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{dir: dir}
}

// Fetch implements Source. The trailing limit bars of the file are
// returned; limit <= 0 returns everything.
func (c *CSVSource) Fetch(_ context.Context, symbol string, interval time.Duration, limit int) (series.Series, error) {
	path := filepath.Join(c.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return series.Series{}, fmt.Errorf("feed: opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return series.Series{}, fmt.Errorf("feed: reading %s: %w", path, err)
	}
	if len(records) < 2 {
		return series.Series{}, fmt.Errorf("feed: %s: no data rows", path)
	}

	hasFunding := len(records[0]) >= 7
	bars := make([]series.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		bar, err := parseCSVBar(rec, hasFunding)
		if err != nil {
			return series.Series{}, fmt.Errorf("feed: %s row %d: %w", path, i+2, err)
		}
		bars = append(bars, bar)
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	s := series.Series{Symbol: symbol, Interval: interval, Bars: bars}
	if err := s.Validate(); err != nil {
		return series.Series{}, fmt.Errorf("feed: %s: %w", path, err)
	}
	return s, nil
}

func parseCSVBar(rec []string, hasFunding bool) (series.Bar, error) {
	want := 6
	if hasFunding {
		want = 7
	}
	if len(rec) < want {
		return series.Bar{}, fmt.Errorf("want %d columns, got %d", want, len(rec))
	}

	fields := make([]float64, 0, want)
	for _, raw := range rec[:want] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return series.Bar{}, fmt.Errorf("bad numeric field %q: %w", raw, err)
		}
		fields = append(fields, v)
	}

	bar := series.Bar{
		Timestamp: time.Unix(int64(fields[0]), 0).UTC(),
		Open:      fields[1],
		High:      fields[2],
		Low:       fields[3],
		Close:     fields[4],
		Volume:    fields[5],
	}
	if hasFunding {
		bar.FundingRate = fields[6]
		bar.HasFunding = true
	}
	return bar, nil
}
