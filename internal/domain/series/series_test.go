package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSeries(n int) Series {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      100, High: 101, Low: 99, Close: 100,
			Volume: 1000,
		}
	}
	return Series{Symbol: "BTC-USDT", Interval: time.Hour, Bars: bars}
}

func TestValidate_CleanSeries(t *testing.T) {
	s := makeSeries(48)
	require.NoError(t, s.Validate())
}

func TestValidate_Empty(t *testing.T) {
	s := Series{Symbol: "BTC-USDT", Interval: time.Hour}
	assert.ErrorIs(t, s.Validate(), ErrEmpty)
}

func TestValidate_NonMonotonic(t *testing.T) {
	s := makeSeries(10)
	s.Bars[5].Timestamp = s.Bars[3].Timestamp
	assert.ErrorIs(t, s.Validate(), ErrNonMonotonic)
}

func TestValidate_Gap(t *testing.T) {
	s := makeSeries(10)
	// Drop a bar from the middle, leaving a 2h hole.
	s.Bars = append(s.Bars[:5], s.Bars[6:]...)
	assert.ErrorIs(t, s.Validate(), ErrGap)
}

func TestValidate_BadPrice(t *testing.T) {
	s := makeSeries(10)
	s.Bars[2].Low = -1
	assert.ErrorIs(t, s.Validate(), ErrBadPrice)
}

func TestValidate_NegativeVolume(t *testing.T) {
	s := makeSeries(10)
	s.Bars[7].Volume = -5
	assert.ErrorIs(t, s.Validate(), ErrBadVolume)
}

func TestValidate_MixedFunding(t *testing.T) {
	s := makeSeries(10)
	s.Bars[4].HasFunding = true
	assert.ErrorIs(t, s.Validate(), ErrInconsistentFunding)
}

func TestFundingRates_AbsentIsExplicit(t *testing.T) {
	s := makeSeries(10)
	_, ok := s.FundingRates()
	assert.False(t, ok, "no bar carries funding, column must be reported absent")

	for i := range s.Bars {
		s.Bars[i].HasFunding = true
		s.Bars[i].FundingRate = 0.0001
	}
	rates, ok := s.FundingRates()
	require.True(t, ok)
	assert.Len(t, rates, 10)
	assert.Equal(t, 0.0001, rates[9])
}

func TestPrefix_CopiesBars(t *testing.T) {
	s := makeSeries(10)
	p := s.Prefix(5)
	require.Equal(t, 5, p.Len())
	p.Bars[0].Close = 42
	assert.Equal(t, 100.0, s.Bars[0].Close, "prefix must not alias the source")
}
