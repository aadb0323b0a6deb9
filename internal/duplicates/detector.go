package duplicates

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

// Options bound a duplicate scan. Zero values fall back to the configured defaults.
type Options struct {
	RadiusMeters  float64
	Threshold     float64
	Lookback      time.Duration
	MaxCandidates int
	MaxResults    int
	Now           time.Time
}

// Pair is a likely duplicate awaiting human review. RequestA is always the
// lexically smaller id so a pair has one identity regardless of scan order.
type Pair struct {
	RequestA uuid.UUID `json:"request_a"`
	RequestB uuid.UUID `json:"request_b"`
	Score    PairScore `json:"score"`
}

// Detector finds likely duplicate requests.
type Detector struct {
	repo Repository
	cfg  config.DuplicatesConfig
	logg *logger.Logger
}

// NewDetector wires the detector dependencies.
func NewDetector(repo Repository, cfg config.DuplicatesConfig, logg *logger.Logger) (*Detector, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "duplicates repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Detector{repo: repo, cfg: cfg, logg: logg}, nil
}

func (d *Detector) withDefaults(opts Options) Options {
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = d.cfg.RadiusMeters
	}
	if opts.Threshold <= 0 {
		opts.Threshold = d.cfg.Threshold
	}
	if opts.Lookback <= 0 {
		opts.Lookback = d.cfg.Lookback
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = d.cfg.MaxCandidates
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = d.cfg.MaxResults
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	return opts
}

// Find scores every unresolved recent request against its neighbours and
// returns pairs at or above the threshold, best first.
func (d *Detector) Find(ctx context.Context, opts Options) ([]Pair, error) {
	opts = d.withDefaults(opts)
	since := opts.Now.Add(-opts.Lookback)

	candidates, err := d.repo.Unresolved(ctx, since, opts.MaxCandidates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load duplicate candidates")
	}

	seen := map[[2]uuid.UUID]struct{}{}
	var pairs []Pair
	for _, candidate := range candidates {
		if !candidate.Location.IsValid() {
			continue
		}
		neighbours, err := d.repo.Near(ctx, candidate.Location, opts.RadiusMeters, since)
		if err != nil {
			d.logg.Error(d.logg.WithAidRequestID(ctx, candidate.ID.String()), "duplicate near query failed", err)
			continue
		}
		for _, other := range neighbours {
			if other.ID == candidate.ID {
				continue
			}
			key := pairKey(candidate.ID, other.ID)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if dismissed(candidate, other) {
				continue
			}
			score := Score(candidate, other, opts.RadiusMeters)
			if score.Total < opts.Threshold {
				continue
			}
			pairs = append(pairs, Pair{RequestA: key[0], RequestB: key[1], Score: score})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score.Total != pairs[j].Score.Total {
			return pairs[i].Score.Total > pairs[j].Score.Total
		}
		return pairs[i].RequestA.String() < pairs[j].RequestA.String()
	})
	if len(pairs) > opts.MaxResults {
		pairs = pairs[:opts.MaxResults]
	}
	return pairs, nil
}

func pairKey(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}

// dismissed reports whether a reviewer already marked the pair as distinct.
func dismissed(a, b models.AidRequest) bool {
	for _, entry := range a.Timeline {
		if entry.Action == ActionNotDuplicate && entry.RelatedID == b.ID.String() {
			return true
		}
	}
	for _, entry := range b.Timeline {
		if entry.Action == ActionNotDuplicate && entry.RelatedID == a.ID.String() {
			return true
		}
	}
	return false
}
