// Package rating prices meter consumption against resolved tariffs. It is
// pure computation: no database access, no clock, no side effects.
package rating

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"

	policydomain "github.com/gridbill/gridbill/internal/policy/domain"
	policyservice "github.com/gridbill/gridbill/internal/policy/service"
	readingdomain "github.com/gridbill/gridbill/internal/reading/domain"
	"github.com/gridbill/gridbill/pkg/money"
)

// ErrInsufficientData means fewer than two readings were supplied, so no
// consumption interval can be formed.
var ErrInsufficientData = errors.New("insufficient_readings")

// unitPriceEpsilon bounds how far apart two raw unit prices may be and still
// land in the same bucket.
const unitPriceEpsilon = 1e-4

// Bucket is one itemized charge line: consumption aggregated over every
// interval that shared the same policy, rule classification and unit price.
type Bucket struct {
	PolicyID    snowflake.ID
	DetailType  policydomain.PriceType
	TimePeriod  policydomain.TimePeriod
	LadderLevel policydomain.LadderLevel
	Electricity float64
	UnitPrice   float64
	Amount      float64
}

// UncoveredInterval is a consumption interval no resolved policy covered.
// It is skipped, not charged; callers surface these as warnings.
type UncoveredInterval struct {
	Start       time.Time
	End         time.Time
	Electricity float64
}

// Result is the priced output for one billing window.
type Result struct {
	TotalElectricity   float64
	TotalAmount        float64
	Buckets            []Bucket
	UncoveredIntervals []UncoveredInterval
}

// Compute prices the consumption between consecutive readings.
//
// Readings must be in non-decreasing timestamp order; intervals with
// non-positive deltas (counter resets, duplicate samples) are dropped
// without charge. Each remaining interval is charged under the first policy
// whose effective window contains the interval start. The ladder tier is the
// one active at the accumulated consumption when the interval begins; the
// whole interval is charged at that tier even when it crosses a tier
// boundary. Amounts are kept in float64 per interval and rounded only after
// bucket merging.
func Compute(readings []readingdomain.MeterReading, policies []policyservice.ResolvedPolicy) (*Result, error) {
	if len(readings) < 2 {
		return nil, ErrInsufficientData
	}

	res := &Result{}
	accumulated := 0.0

	for i := 0; i+1 < len(readings); i++ {
		cur, next := readings[i], readings[i+1]
		consumption := next.Value - cur.Value
		if consumption <= 0 {
			continue
		}

		entryAccumulation := accumulated
		accumulated += consumption

		rp := matchPolicy(policies, cur.RecordedAt)
		if rp == nil {
			res.UncoveredIntervals = append(res.UncoveredIntervals, UncoveredInterval{
				Start:       cur.RecordedAt,
				End:         next.RecordedAt,
				Electricity: consumption,
			})
			continue
		}

		policy := rp.Policy
		timeRatio := 1.0
		var period policydomain.TimePeriod
		if policy.PriceType.UsesTimeShare() {
			timeRatio, period = timeShareRatio(policy.TimeShareRules, cur.RecordedAt.Hour())
		}

		ladderRatio := 1.0
		var level policydomain.LadderLevel
		if policy.PriceType.UsesLadder() {
			ladderRatio, level = ladderRatioAt(policy.LadderRules, entryAccumulation)
		}

		unitPrice := policy.BaseUnitPrice * timeRatio * ladderRatio
		mergeBucket(res, Bucket{
			PolicyID:    policy.ID,
			DetailType:  policy.PriceType,
			TimePeriod:  period,
			LadderLevel: level,
			Electricity: consumption,
			UnitPrice:   unitPrice,
			Amount:      consumption * unitPrice,
		})
	}

	for i := range res.Buckets {
		b := &res.Buckets[i]
		b.Electricity = money.RoundAmount(b.Electricity)
		b.UnitPrice = money.RoundUnitPrice(b.UnitPrice)
		b.Amount = money.RoundAmount(b.Amount)
	}

	amounts := make([]float64, 0, len(res.Buckets))
	for _, b := range res.Buckets {
		amounts = append(amounts, b.Amount)
	}
	res.TotalAmount = money.Sum(amounts...)
	res.TotalElectricity = money.RoundAmount(readings[len(readings)-1].Value - readings[0].Value)
	return res, nil
}

// matchPolicy returns the first policy whose effective window contains ts.
// Policies arrive chronologically ordered from the resolver.
func matchPolicy(policies []policyservice.ResolvedPolicy, ts time.Time) *policyservice.ResolvedPolicy {
	for i := range policies {
		p := &policies[i]
		if !ts.Before(p.EffectiveStart) && ts.Before(p.EffectiveEnd) {
			return p
		}
	}
	return nil
}

func timeShareRatio(rules []policydomain.TimeShareRule, hour int) (float64, policydomain.TimePeriod) {
	for _, r := range rules {
		if r.ContainsHour(hour) {
			return r.Ratio, r.Period
		}
	}
	return 1.0, ""
}

// ladderRatioAt picks the tier bracketing the given cumulative consumption.
// Rules are scanned in min_electricity order.
func ladderRatioAt(rules []policydomain.LadderRule, accumulated float64) (float64, policydomain.LadderLevel) {
	ordered := make([]policydomain.LadderRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].MinElectricity < ordered[j].MinElectricity
	})

	for _, r := range ordered {
		if accumulated < r.MinElectricity {
			continue
		}
		if r.MaxElectricity == nil || accumulated < *r.MaxElectricity {
			return r.Ratio, r.Level
		}
	}
	return 1.0, ""
}

func mergeBucket(res *Result, b Bucket) {
	for i := range res.Buckets {
		existing := &res.Buckets[i]
		if existing.PolicyID == b.PolicyID &&
			existing.DetailType == b.DetailType &&
			existing.TimePeriod == b.TimePeriod &&
			existing.LadderLevel == b.LadderLevel &&
			math.Abs(existing.UnitPrice-b.UnitPrice) < unitPriceEpsilon {
			existing.Electricity += b.Electricity
			existing.Amount += b.Amount
			return
		}
	}
	res.Buckets = append(res.Buckets, b)
}
