package rating

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	policydomain "github.com/gridbill/gridbill/internal/policy/domain"
	policyservice "github.com/gridbill/gridbill/internal/policy/service"
	readingdomain "github.com/gridbill/gridbill/internal/reading/domain"
)

var (
	monthStart = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	monthEnd   = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
)

func ptr(v float64) *float64 { return &v }

func reading(value float64, day, hour int) readingdomain.MeterReading {
	return readingdomain.MeterReading{
		Value:      value,
		RecordedAt: time.Date(2026, 7, day, hour, 0, 0, 0, time.UTC),
	}
}

func resolved(policy policydomain.PricePolicy) []policyservice.ResolvedPolicy {
	return []policyservice.ResolvedPolicy{{
		Policy:         policy,
		EffectiveStart: monthStart,
		EffectiveEnd:   monthEnd,
	}}
}

func ladderPolicy(base float64) policydomain.PricePolicy {
	return policydomain.PricePolicy{
		ID:            snowflake.ID(1001),
		PriceType:     policydomain.PriceTypeLadder,
		BaseUnitPrice: base,
		LadderRules: []policydomain.LadderRule{
			{Level: policydomain.LadderLow, MinElectricity: 0, MaxElectricity: ptr(100), Ratio: 1.0},
			{Level: policydomain.LadderHigh, MinElectricity: 100, Ratio: 2.0},
		},
	}
}

func TestCompute_InsufficientReadings(t *testing.T) {
	_, err := Compute(nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Compute([]readingdomain.MeterReading{reading(100, 1, 0)}, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestCompute_LadderClassifiesAtIntervalStart(t *testing.T) {
	readings := []readingdomain.MeterReading{
		reading(100.0, 1, 0),
		reading(150.0, 1, 12),
		reading(220.0, 2, 0),
	}

	res, err := Compute(readings, resolved(ladderPolicy(1.0)))
	require.NoError(t, err)

	// The second interval enters at accumulation 50, so its whole 70 kWh is
	// charged at the low tier even though it crosses the 100 kWh boundary.
	assert.Equal(t, 120.0, res.TotalElectricity)
	assert.Equal(t, 120.0, res.TotalAmount)
	require.Len(t, res.Buckets, 1)
	assert.Equal(t, policydomain.LadderLow, res.Buckets[0].LadderLevel)
	assert.Equal(t, 120.0, res.Buckets[0].Electricity)
}

func TestCompute_LadderReachesHighTier(t *testing.T) {
	readings := []readingdomain.MeterReading{
		reading(0, 1, 0),
		reading(110, 2, 0),
		reading(150, 3, 0),
	}

	res, err := Compute(readings, resolved(ladderPolicy(1.0)))
	require.NoError(t, err)

	require.Len(t, res.Buckets, 2)
	assert.Equal(t, policydomain.LadderLow, res.Buckets[0].LadderLevel)
	assert.Equal(t, 110.0, res.Buckets[0].Amount)
	assert.Equal(t, policydomain.LadderHigh, res.Buckets[1].LadderLevel)
	assert.Equal(t, 80.0, res.Buckets[1].Amount)
	assert.Equal(t, 190.0, res.TotalAmount)
}

func TestCompute_TimeShareWrapsPastMidnight(t *testing.T) {
	policy := policydomain.PricePolicy{
		ID:            snowflake.ID(2002),
		PriceType:     policydomain.PriceTypeTimeShare,
		BaseUnitPrice: 1.0,
		TimeShareRules: []policydomain.TimeShareRule{
			{Period: policydomain.PeriodValley, StartHour: 22, EndHour: 6, Ratio: 0.5},
			{Period: policydomain.PeriodFlat, StartHour: 6, EndHour: 22, Ratio: 1.0},
		},
	}

	readings := []readingdomain.MeterReading{
		reading(0, 1, 23),
		reading(10, 2, 3),
		reading(20, 2, 10),
		reading(30, 2, 18),
	}

	res, err := Compute(readings, resolved(policy))
	require.NoError(t, err)

	require.Len(t, res.Buckets, 2)
	assert.Equal(t, policydomain.PeriodValley, res.Buckets[0].TimePeriod)
	assert.Equal(t, 20.0, res.Buckets[0].Electricity)
	assert.Equal(t, 10.0, res.Buckets[0].Amount)
	assert.Equal(t, policydomain.PeriodFlat, res.Buckets[1].TimePeriod)
	assert.Equal(t, 10.0, res.Buckets[1].Amount)
}

func TestTimeShareRule_WraparoundHours(t *testing.T) {
	rule := policydomain.TimeShareRule{StartHour: 22, EndHour: 6}
	for h := 0; h < 24; h++ {
		want := h >= 22 || h < 6
		assert.Equal(t, want, rule.ContainsHour(h), "hour %d", h)
	}

	fullDay := policydomain.TimeShareRule{StartHour: 8, EndHour: 8}
	for h := 0; h < 24; h++ {
		assert.True(t, fullDay.ContainsHour(h), "hour %d", h)
	}
}

func TestCompute_CombinedMultipliesRatios(t *testing.T) {
	policy := ladderPolicy(0.5)
	policy.PriceType = policydomain.PriceTypeCombined
	policy.TimeShareRules = []policydomain.TimeShareRule{
		{Period: policydomain.PeriodPeak, StartHour: 8, EndHour: 22, Ratio: 1.5},
		{Period: policydomain.PeriodValley, StartHour: 22, EndHour: 8, Ratio: 0.5},
	}

	readings := []readingdomain.MeterReading{
		reading(0, 1, 10),
		reading(40, 1, 12),
	}

	res, err := Compute(readings, resolved(policy))
	require.NoError(t, err)
	require.Len(t, res.Buckets, 1)

	// 0.5 base * 1.5 peak * 1.0 low tier
	assert.Equal(t, 0.75, res.Buckets[0].UnitPrice)
	assert.Equal(t, 30.0, res.Buckets[0].Amount)
	assert.Equal(t, policydomain.PeriodPeak, res.Buckets[0].TimePeriod)
	assert.Equal(t, policydomain.LadderLow, res.Buckets[0].LadderLevel)
}

func TestCompute_SkipsNonPositiveIntervals(t *testing.T) {
	readings := []readingdomain.MeterReading{
		reading(100, 1, 0),
		reading(100, 1, 6),
		reading(40, 1, 12),
		reading(60, 2, 0),
	}

	res, err := Compute(readings, resolved(ladderPolicy(1.0)))
	require.NoError(t, err)

	// Only the 40 -> 60 interval is charged.
	require.Len(t, res.Buckets, 1)
	assert.Equal(t, 20.0, res.Buckets[0].Electricity)
	assert.Equal(t, 20.0, res.TotalAmount)
	// Grand total stays reading-delta based even with resets in between.
	assert.Equal(t, -40.0, res.TotalElectricity)
}

func TestCompute_UncoveredIntervalsAreReportedNotCharged(t *testing.T) {
	policy := ladderPolicy(1.0)
	partial := []policyservice.ResolvedPolicy{{
		Policy:         policy,
		EffectiveStart: monthStart,
		EffectiveEnd:   time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
	}}

	readings := []readingdomain.MeterReading{
		reading(0, 5, 0),
		reading(30, 12, 0),
		reading(50, 15, 0),
		reading(80, 20, 0),
	}

	res, err := Compute(readings, partial)
	require.NoError(t, err)

	require.Len(t, res.Buckets, 1)
	assert.Equal(t, 30.0, res.Buckets[0].Electricity)
	require.Len(t, res.UncoveredIntervals, 2)
	assert.Equal(t, 20.0, res.UncoveredIntervals[0].Electricity)
	assert.Equal(t, 30.0, res.UncoveredIntervals[1].Electricity)
	assert.Equal(t, 30.0, res.TotalAmount)
}

func TestCompute_TotalEqualsSumOfBuckets(t *testing.T) {
	policy := ladderPolicy(0.53)
	policy.PriceType = policydomain.PriceTypeCombined
	policy.TimeShareRules = []policydomain.TimeShareRule{
		{Period: policydomain.PeriodPeak, StartHour: 8, EndHour: 22, Ratio: 1.2},
		{Period: policydomain.PeriodValley, StartHour: 22, EndHour: 8, Ratio: 0.4},
	}

	readings := []readingdomain.MeterReading{
		reading(1000.0, 1, 0),
		reading(1013.7, 1, 9),
		reading(1044.2, 1, 23),
		reading(1101.9, 2, 14),
		reading(1180.3, 3, 2),
	}

	res, err := Compute(readings, resolved(policy))
	require.NoError(t, err)

	sum := 0.0
	for _, b := range res.Buckets {
		sum += b.Amount
	}
	assert.InDelta(t, sum, res.TotalAmount, 0.01)
	assert.InDelta(t, 180.3, res.TotalElectricity, 0.001)
}

func TestLadderRatioAt_Monotonic(t *testing.T) {
	rules := ladderPolicy(1.0).LadderRules

	prev := 0.0
	for _, acc := range []float64{0, 10, 50, 99.99, 100, 150, 1000} {
		ratio, _ := ladderRatioAt(rules, acc)
		assert.GreaterOrEqual(t, ratio, prev, "accumulation %v", acc)
		prev = ratio
	}
}
