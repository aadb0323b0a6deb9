package matching

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/geo"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

// OfferCandidate is a ranked offer for one need category.
type OfferCandidate struct {
	Offer        models.Offer
	Organization models.Organization
	DistanceKm   float64
	Score        float64
}

// OrganizationCandidate is a ranked organization for fallback or generic assignment.
type OrganizationCandidate struct {
	Organization  models.Organization
	DistanceKm    float64
	Capabilities  []enums.NeedCategory
	CapacityRatio float64
	RouteBlocked  bool
	Score         float64
}

// Scorer ranks offers and organizations against a request.
type Scorer struct {
	store Store
	cfg   config.MatchingConfig
	logg  *logger.Logger
	now   func() time.Time
}

// NewScorer wires the scorer dependencies.
func NewScorer(store Store, cfg config.MatchingConfig, logg *logger.Logger) (*Scorer, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "matching store required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Scorer{
		store: store,
		cfg:   cfg,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// ScoreOffers ranks active offers of category holding at least quantity units
// within the search radius. Store failures yield an empty list.
func (s *Scorer) ScoreOffers(ctx context.Context, req models.AidRequest, category enums.NeedCategory, quantity int) []OfferCandidate {
	ctx = s.logg.WithFields(ctx, map[string]any{
		"aid_request_id": req.ID.String(),
		"category":       category.String(),
	})
	if !req.Location.IsValid() {
		s.logg.Warn(ctx, "request location invalid; skipping offer scoring")
		return nil
	}
	if quantity < 1 {
		quantity = 1
	}

	offers, err := s.store.OffersNear(ctx, req.Location, s.cfg.SearchRadiusKm, category, quantity, s.now())
	if err != nil {
		s.logg.Error(ctx, "offer near query failed", err)
		return nil
	}
	if len(offers) == 0 {
		return nil
	}

	orgIDs := make([]uuid.UUID, 0, len(offers))
	for _, offer := range offers {
		orgIDs = append(orgIDs, offer.OrganizationID)
	}
	orgs, err := s.store.OrganizationsByIDs(ctx, orgIDs)
	if err != nil {
		s.logg.Error(ctx, "offer owner lookup failed", err)
		return nil
	}
	byID := make(map[uuid.UUID]models.Organization, len(orgs))
	for _, org := range orgs {
		byID[org.ID] = org
	}

	boost := s.cfg.PriorityBoost(req.Priority)
	out := make([]OfferCandidate, 0, len(offers))
	for _, offer := range offers {
		org, ok := byID[offer.OrganizationID]
		if !ok || !org.IsActive {
			s.logg.Warn(s.logg.WithOfferID(ctx, offer.ID.String()), "offer owner missing or inactive; skipped")
			continue
		}
		if offer.TotalQuantity <= 0 || !offer.Location.IsValid() {
			s.logg.Warn(s.logg.WithOfferID(ctx, offer.ID.String()), "offer has invalid quantity or location; skipped")
			continue
		}
		km := geo.DistanceKm(req.Location, offer.Location)
		score := math.Max(0, s.cfg.OfferDistanceMax-km*s.cfg.OfferDistancePerKm) +
			float64(offer.AvailableQuantity)/float64(offer.TotalQuantity)*s.cfg.OfferAvailability +
			org.Rating/5*s.cfg.OfferRating +
			s.responseTerm(org) +
			boost*s.cfg.OfferPriorityFactor
		if org.IsVerified {
			score += s.cfg.OfferVerifiedBonus
		}
		out = append(out, OfferCandidate{Offer: offer, Organization: org, DistanceKm: km, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ScoreOrganizations ranks active, verified organizations near the request.
// Capabilities are derived from live offers on every call.
func (s *Scorer) ScoreOrganizations(ctx context.Context, req models.AidRequest, categories []enums.NeedCategory) []OrganizationCandidate {
	ctx = s.logg.WithAidRequestID(ctx, req.ID.String())
	if !req.Location.IsValid() {
		s.logg.Warn(ctx, "request location invalid; skipping organization scoring")
		return nil
	}

	orgs, err := s.store.OrganizationsNear(ctx, req.Location, s.cfg.SearchRadiusKm)
	if err != nil {
		s.logg.Error(ctx, "organization near query failed", err)
		return nil
	}
	if len(orgs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(orgs))
	for _, org := range orgs {
		ids = append(ids, org.ID)
	}
	offers, err := s.store.OffersByOrganizations(ctx, ids)
	if err != nil {
		s.logg.Error(ctx, "organization offers query failed", err)
		return nil
	}
	pools := buildPools(offers)

	routes, err := s.store.ActiveBlockedRoutes(ctx, s.now())
	if err != nil {
		// The penalty only lowers scores, so ranking continues without it.
		s.logg.Error(ctx, "blocked route query failed; scoring without route penalty", err)
		routes = nil
	}

	boost := s.cfg.PriorityBoost(req.Priority)
	urgent := req.Priority == enums.PrioritySOS || req.Priority == enums.PriorityCritical

	out := make([]OrganizationCandidate, 0, len(orgs))
	for _, org := range orgs {
		orgCtx := s.logg.WithOrganizationID(ctx, org.ID.String())
		if !org.Location.IsValid() {
			s.logg.Warn(orgCtx, "organization location invalid; skipped")
			continue
		}
		pool := pools[org.ID]
		capacity := pool.ratio()

		score := s.capabilityTerm(pool, categories) +
			capacity*s.cfg.CapacityWeight +
			s.loadTerm(org) +
			org.Rating/5*s.cfg.RatingWeight +
			s.responseTerm(org) +
			boost
		if urgent && pool.has(enums.NeedCategoryRescue) {
			score += s.cfg.RescueBonus
		}
		if org.IsOnline {
			score += s.cfg.OnlineBonus
		}
		if org.Available24x7 {
			score += s.cfg.Always24x7Bonus
		}
		blocked := s.routeBlocked(orgCtx, org, req, routes)
		if blocked {
			score -= s.cfg.RouteBlockPenalty
		}

		out = append(out, OrganizationCandidate{
			Organization:  org,
			DistanceKm:    geo.DistanceKm(req.Location, org.Location),
			Capabilities:  pool.capabilities(),
			CapacityRatio: capacity,
			RouteBlocked:  blocked,
			Score:         score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Scorer) capabilityTerm(pool offerPool, categories []enums.NeedCategory) float64 {
	if len(categories) == 0 {
		return s.cfg.CapabilityWeight / 2
	}
	matched := 0
	for _, c := range categories {
		if pool.has(c) {
			matched++
		}
	}
	return float64(matched) / float64(len(categories)) * s.cfg.CapabilityWeight
}

func (s *Scorer) loadTerm(org models.Organization) float64 {
	if org.MaxActiveAssignments <= 0 {
		return 0
	}
	free := 1 - float64(org.ActiveAssignments)/float64(org.MaxActiveAssignments)
	return math.Max(0, free) * s.cfg.LoadWeight
}

func (s *Scorer) responseTerm(org models.Organization) float64 {
	return math.Max(0, s.cfg.ResponseWeight-org.AverageResponseMinutes/60*s.cfg.ResponseWeight)
}

// routeBlocked reports whether any active closure has a segment midpoint
// within its severity buffer of the straight org-to-request line.
func (s *Scorer) routeBlocked(ctx context.Context, org models.Organization, req models.AidRequest, routes []models.BlockedRoute) bool {
	for _, route := range routes {
		if err := route.Path.Validate(); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "blocked_route_id", route.ID.String()), "blocked route path invalid; ignored")
			continue
		}
		buffer := route.Severity.BufferKm()
		for i := 0; i+1 < len(route.Path); i++ {
			mid := geo.Midpoint(route.Path[i], route.Path[i+1])
			if geo.PointToSegmentKm(mid, org.Location, req.Location) <= buffer {
				return true
			}
		}
	}
	return false
}

// offerPool aggregates one organization's live offers.
type offerPool struct {
	available int
	total     int
	caps      map[enums.NeedCategory]struct{}
}

func buildPools(offers []models.Offer) map[uuid.UUID]offerPool {
	pools := map[uuid.UUID]offerPool{}
	for _, offer := range offers {
		if !offer.Status.IsLive() || offer.TotalQuantity <= 0 {
			continue
		}
		pool := pools[offer.OrganizationID]
		if pool.caps == nil {
			pool.caps = map[enums.NeedCategory]struct{}{}
		}
		// Capacity spans every live offer regardless of category.
		pool.available += offer.AvailableQuantity
		pool.total += offer.TotalQuantity
		if offer.Status == enums.OfferStatusActive && offer.AvailableQuantity > 0 {
			pool.caps[offer.Category] = struct{}{}
		}
		pools[offer.OrganizationID] = pool
	}
	return pools
}

func (p offerPool) ratio() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.available) / float64(p.total)
}

func (p offerPool) has(c enums.NeedCategory) bool {
	_, ok := p.caps[c]
	return ok
}

func (p offerPool) capabilities() []enums.NeedCategory {
	out := make([]enums.NeedCategory, 0, len(p.caps))
	for c := range p.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
