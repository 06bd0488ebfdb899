package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gridbill/gridbill/internal/policy/domain"
	regiondomain "github.com/gridbill/gridbill/internal/region/domain"
)

// ResolvedPolicy is a policy clamped to the requested window. Inherited is
// set when the policy was found on an ancestor region rather than the
// meter's own region.
type ResolvedPolicy struct {
	Policy         domain.PricePolicy
	EffectiveStart time.Time
	EffectiveEnd   time.Time
	Inherited      bool
	SourceRegionID snowflake.ID
}

// Resolver finds the tariffs that price a region's consumption over a window.
type Resolver interface {
	Resolve(ctx context.Context, db *gorm.DB, regionID snowflake.ID, start, end time.Time) ([]ResolvedPolicy, error)
}

type Params struct {
	fx.In

	Logger   *zap.Logger
	Policies domain.Repository
	Regions  regiondomain.Repository
}

type resolver struct {
	logger   *zap.Logger
	policies domain.Repository
	regions  regiondomain.Repository
}

// NewResolver constructs the policy resolver.
func NewResolver(p Params) Resolver {
	return &resolver{
		logger:   p.Logger.Named("policy.service"),
		policies: p.Policies,
		regions:  p.Regions,
	}
}

// Resolve walks the region ancestry nearest-first and returns the active
// policies of the first region with any overlap, each clamped to
// [start, end). Policies never leak across sibling regions; a child with
// its own policies shadows the parent's entirely.
func (s *resolver) Resolve(ctx context.Context, db *gorm.DB, regionID snowflake.ID, start, end time.Time) ([]ResolvedPolicy, error) {
	if !start.Before(end) {
		return nil, domain.ErrInvalidWindow
	}

	regions, err := s.regions.Chain(ctx, db, regionID)
	if err != nil {
		return nil, err
	}

	chain := make([]snowflake.ID, 0, len(regions))
	for _, r := range regions {
		chain = append(chain, r.ID)
	}

	for depth, rid := range chain {
		policies, err := s.policies.FindEffective(ctx, db, rid, start, end)
		if err != nil {
			return nil, err
		}
		if len(policies) == 0 {
			continue
		}

		resolved := make([]ResolvedPolicy, 0, len(policies))
		for _, p := range policies {
			resolved = append(resolved, ResolvedPolicy{
				Policy:         p,
				EffectiveStart: clampStart(p.StartTime, start),
				EffectiveEnd:   clampEnd(p.EndTime, end),
				Inherited:      depth > 0,
				SourceRegionID: rid,
			})
		}

		if depth > 0 {
			s.logger.Debug("policy inherited from ancestor region",
				zap.String("region_id", regionID.String()),
				zap.String("source_region_id", rid.String()),
				zap.Int("depth", depth),
			)
		}
		return resolved, nil
	}

	return nil, &domain.NotFoundError{Start: start, End: end, RegionChain: chain}
}

func clampStart(policyStart, windowStart time.Time) time.Time {
	if policyStart.After(windowStart) {
		return policyStart
	}
	return windowStart
}

func clampEnd(policyEnd *time.Time, windowEnd time.Time) time.Time {
	if policyEnd != nil && policyEnd.Before(windowEnd) {
		return *policyEnd
	}
	return windowEnd
}
