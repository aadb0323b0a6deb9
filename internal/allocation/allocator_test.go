package allocation

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/internal/matching"
	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/db/dbtest"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

type recordingNotifier struct {
	mu       sync.Mutex
	created  []models.Assignment
	updated  []models.Assignment
	statuses [][2]enums.RequestStatus
}

func (n *recordingNotifier) AssignmentCreated(_ context.Context, a models.Assignment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, a)
}

func (n *recordingNotifier) AssignmentUpdated(_ context.Context, a models.Assignment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, a)
}

func (n *recordingNotifier) RequestStatusChanged(_ context.Context, _ uuid.UUID, from, to enums.RequestStatus) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, [2]enums.RequestStatus{from, to})
}

type stubScorer struct {
	offers []matching.OfferCandidate
	orgs   []matching.OrganizationCandidate
}

func (s stubScorer) ScoreOffers(context.Context, models.AidRequest, enums.NeedCategory, int) []matching.OfferCandidate {
	return s.offers
}

func (s stubScorer) ScoreOrganizations(context.Context, models.AidRequest, []enums.NeedCategory) []matching.OrganizationCandidate {
	return s.orgs
}

type fixture struct {
	conn      *gorm.DB
	allocator *Allocator
	notifier  *recordingNotifier
}

func newFixture(t *testing.T, scorer candidateScorer) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test"})
	if scorer == nil {
		s, err := matching.NewScorer(matching.NewRepository(conn), config.DefaultMatching(), logg)
		require.NoError(t, err)
		scorer = s
	}
	notifier := &recordingNotifier{}
	allocator, err := NewAllocator(Params{
		DB:         db.Wrap(conn),
		Repository: NewRepository(conn),
		Scorer:     scorer,
		Notifier:   notifier,
		Logger:     logg,
	})
	require.NoError(t, err)
	return fixture{conn: conn, allocator: allocator, notifier: notifier}
}

func reload[T any](t *testing.T, conn *gorm.DB, id uuid.UUID) T {
	t.Helper()
	var row T
	require.NoError(t, conn.First(&row, "id = ?", id).Error)
	return row
}

func TestAllocateThenReleaseRestoresOffer(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	org := dbtest.CreateOrganization(t, f.conn, nil)
	offer := dbtest.CreateOffer(t, f.conn, org, func(o *models.Offer) {
		o.TotalQuantity = 40
		o.AvailableQuantity = 40
	})
	req := dbtest.CreateRequest(t, f.conn, nil)

	assignment, ok, err := f.allocator.AllocateFromOffer(ctx, req, matching.OfferCandidate{Offer: offer, Organization: org, Score: 70}, 40)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, enums.AssignmentMethodOfferMatch, assignment.Method)
	require.Equal(t, enums.AssignmentStatusPending, assignment.Status)
	require.Equal(t, offer.ID, *assignment.OfferID)
	require.Equal(t, 40, assignment.Quantity)
	require.Equal(t, 70.0, assignment.Score)

	got := reload[models.Offer](t, f.conn, offer.ID)
	require.Equal(t, 0, got.AvailableQuantity)
	require.Equal(t, 40, got.AllocatedQuantity)
	require.Equal(t, enums.OfferStatusExhausted, got.Status)

	storedReq := reload[models.AidRequest](t, f.conn, req.ID)
	require.Equal(t, enums.RequestStatusAssigned, storedReq.Status)
	require.Equal(t, []uuid.UUID{assignment.ID}, []uuid.UUID(storedReq.AssignmentIDs))
	require.Len(t, storedReq.Timeline, 1)
	require.Equal(t, ActionAssigned, storedReq.Timeline[0].Action)
	require.Equal(t, assignment.ID.String(), storedReq.Timeline[0].RelatedID)

	require.Equal(t, 1, reload[models.Organization](t, f.conn, org.ID).ActiveAssignments)
	require.Len(t, f.notifier.created, 1)
	require.Equal(t, [][2]enums.RequestStatus{{enums.RequestStatusNew, enums.RequestStatusAssigned}}, f.notifier.statuses)

	require.NoError(t, f.allocator.Release(ctx, offer.ID, 40))
	got = reload[models.Offer](t, f.conn, offer.ID)
	require.Equal(t, 40, got.AvailableQuantity)
	require.Equal(t, 0, got.AllocatedQuantity)
	require.Equal(t, enums.OfferStatusActive, got.Status)

	err = f.allocator.Release(ctx, offer.ID, 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, 40, reload[models.Offer](t, f.conn, offer.ID).AvailableQuantity)

	err = f.allocator.Release(ctx, uuid.New(), 1)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAllocateInsufficientQuantityChangesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	org := dbtest.CreateOrganization(t, f.conn, nil)
	offer := dbtest.CreateOffer(t, f.conn, org, func(o *models.Offer) { o.AvailableQuantity = 10 })
	paused := dbtest.CreateOffer(t, f.conn, org, func(o *models.Offer) { o.Status = enums.OfferStatusPaused })
	req := dbtest.CreateRequest(t, f.conn, nil)

	for _, cand := range []models.Offer{offer, paused} {
		assignment, ok, err := f.allocator.AllocateFromOffer(ctx, req, matching.OfferCandidate{Offer: cand, Organization: org}, 11)
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, assignment)
	}

	require.Equal(t, 10, reload[models.Offer](t, f.conn, offer.ID).AvailableQuantity)
	require.Equal(t, enums.OfferStatusPaused, reload[models.Offer](t, f.conn, paused.ID).Status)
	require.Equal(t, enums.RequestStatusNew, reload[models.AidRequest](t, f.conn, req.ID).Status)
	require.Equal(t, 0, reload[models.Organization](t, f.conn, org.ID).ActiveAssignments)

	var count int64
	require.NoError(t, f.conn.Model(&models.Assignment{}).Count(&count).Error)
	require.Zero(t, count)
	require.Empty(t, f.notifier.created)

	_, _, err := f.allocator.AllocateFromOffer(ctx, req, matching.OfferCandidate{Offer: offer, Organization: org}, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAllocateFromOrganizationDefaultsToGeneral(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	org := dbtest.CreateOrganization(t, f.conn, nil)
	req := dbtest.CreateRequest(t, f.conn, func(r *models.AidRequest) { r.Status = enums.RequestStatusInProgress })

	assignment, err := f.allocator.AllocateFromOrganization(ctx, req, matching.OrganizationCandidate{Organization: org, Score: 55}, "")
	require.NoError(t, err)
	require.Equal(t, enums.NeedCategoryGeneral, assignment.Category)
	require.Equal(t, enums.AssignmentMethodAuto, assignment.Method)
	require.Nil(t, assignment.OfferID)
	require.Equal(t, 1, assignment.Quantity)

	require.Equal(t, enums.RequestStatusInProgress, reload[models.AidRequest](t, f.conn, req.ID).Status,
		"only new requests move to assigned")
	require.Empty(t, f.notifier.statuses)
	require.Len(t, f.notifier.created, 1)
	require.Equal(t, 1, reload[models.Organization](t, f.conn, org.ID).ActiveAssignments)

	_, err = f.allocator.AllocateFromOrganization(ctx, req, matching.OrganizationCandidate{Organization: org}, "snacks")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCancelAssignmentReleasesHeldQuantity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	org := dbtest.CreateOrganization(t, f.conn, nil)
	offer := dbtest.CreateOffer(t, f.conn, org, func(o *models.Offer) {
		o.TotalQuantity = 30
		o.AvailableQuantity = 30
	})
	req := dbtest.CreateRequest(t, f.conn, nil)

	assignment, ok, err := f.allocator.AllocateFromOffer(ctx, req, matching.OfferCandidate{Offer: offer, Organization: org}, 30)
	require.NoError(t, err)
	require.True(t, ok)
	// Load edited out of band must not go negative.
	require.NoError(t, f.conn.Model(&models.Organization{}).Where("id = ?", org.ID).Update("active_assignments", 0).Error)

	_, err = f.allocator.CancelAssignment(ctx, assignment.ID, enums.AssignmentStatusCompleted)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	cancelled, err := f.allocator.CancelAssignment(ctx, assignment.ID, enums.AssignmentStatusDeclined)
	require.NoError(t, err)
	require.Equal(t, enums.AssignmentStatusDeclined, cancelled.Status)

	got := reload[models.Offer](t, f.conn, offer.ID)
	require.Equal(t, 30, got.AvailableQuantity)
	require.Equal(t, enums.OfferStatusActive, got.Status)
	require.Equal(t, 0, reload[models.Organization](t, f.conn, org.ID).ActiveAssignments)
	require.Equal(t, enums.AssignmentStatusDeclined, reload[models.Assignment](t, f.conn, assignment.ID).Status)
	require.Len(t, f.notifier.updated, 1)

	timeline := reload[models.AidRequest](t, f.conn, req.ID).Timeline
	require.Equal(t, ActionAssignmentCancelled, timeline[len(timeline)-1].Action)

	_, err = f.allocator.CancelAssignment(ctx, assignment.ID, enums.AssignmentStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.allocator.CancelAssignment(ctx, uuid.New(), enums.AssignmentStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAutoMatchPrefersOffers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	org := dbtest.CreateOrganization(t, f.conn, nil)
	water := dbtest.CreateOffer(t, f.conn, org, nil)
	req := dbtest.CreateRequest(t, f.conn, func(r *models.AidRequest) {
		r.Needs = types.Needs{
			enums.NeedCategoryWater:  {Required: true, Quantity: 30},
			enums.NeedCategoryRescue: {Required: true},
			enums.NeedCategoryFood:   {Required: false, Quantity: 5},
		}
	})

	result, err := f.allocator.AutoMatch(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Assignments, 2)

	byCategory := map[enums.NeedCategory]models.Assignment{}
	for _, a := range result.Assignments {
		byCategory[a.Category] = a
	}
	require.Equal(t, enums.AssignmentMethodOfferMatch, byCategory[enums.NeedCategoryWater].Method)
	require.Equal(t, 30, byCategory[enums.NeedCategoryWater].Quantity)
	require.Equal(t, enums.AssignmentMethodAuto, byCategory[enums.NeedCategoryRescue].Method)
	require.Equal(t, 70, reload[models.Offer](t, f.conn, water.ID).AvailableQuantity)
	require.Equal(t, 2, reload[models.Organization](t, f.conn, org.ID).ActiveAssignments)

	listed, err := f.allocator.Assignments(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
}

func TestAutoMatchFallsThroughExhaustedCandidates(t *testing.T) {
	conn := dbtest.Open(t)
	org := dbtest.CreateOrganization(t, conn, nil)
	drained := dbtest.CreateOffer(t, conn, org, func(o *models.Offer) { o.AvailableQuantity = 5 })
	full := dbtest.CreateOffer(t, conn, org, nil)

	scorer := stubScorer{offers: []matching.OfferCandidate{
		{Offer: drained, Organization: org, Score: 90},
		{Offer: full, Organization: org, Score: 60},
	}}
	logg := logger.New(logger.Options{ServiceName: "test"})
	allocator, err := NewAllocator(Params{DB: db.Wrap(conn), Repository: NewRepository(conn), Scorer: scorer, Logger: logg})
	require.NoError(t, err)

	req := dbtest.CreateRequest(t, conn, func(r *models.AidRequest) {
		r.Needs = types.Needs{enums.NeedCategoryWater: {Required: true, Quantity: 20}}
	})
	result, err := allocator.AutoMatch(context.Background(), req.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Assignments, 1)
	require.Equal(t, full.ID, *result.Assignments[0].OfferID)
	require.Equal(t, 5, reload[models.Offer](t, conn, drained.ID).AvailableQuantity)
	require.Equal(t, 80, reload[models.Offer](t, conn, full.ID).AvailableQuantity)
}

func TestAutoMatchGenericAndEmpty(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	lonely := dbtest.CreateRequest(t, f.conn, nil)
	result, err := f.allocator.AutoMatch(ctx, lonely.ID)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Empty(t, result.Assignments)
	require.Equal(t, "no candidates available", result.Message)
	stored := reload[models.AidRequest](t, f.conn, lonely.ID)
	require.Equal(t, enums.RequestStatusNew, stored.Status)
	require.Equal(t, ActionNoCandidates, stored.Timeline[len(stored.Timeline)-1].Action)

	dbtest.CreateOrganization(t, f.conn, nil)
	result, err = f.allocator.AutoMatch(ctx, lonely.ID)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Assignments, 1)
	require.Equal(t, enums.NeedCategoryGeneral, result.Assignments[0].Category)
	require.Equal(t, enums.AssignmentMethodAuto, result.Assignments[0].Method)

	_, err = f.allocator.AutoMatch(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewAllocatorRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{})
	_, err := NewAllocator(Params{Repository: &Repository{}, Scorer: stubScorer{}, Logger: logg})
	require.Error(t, err)
	_, err = NewAllocator(Params{DB: db.Wrap(nil), Scorer: stubScorer{}, Logger: logg})
	require.Error(t, err)
	_, err = NewAllocator(Params{DB: db.Wrap(nil), Repository: &Repository{}, Logger: logg})
	require.Error(t, err)
	_, err = NewAllocator(Params{DB: db.Wrap(nil), Repository: &Repository{}, Scorer: stubScorer{}})
	require.Error(t, err)
}

func TestAutoMatchRefusesRequestsNotAwaitingDispatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	org := dbtest.CreateOrganization(t, f.conn, nil)
	water := dbtest.CreateOffer(t, f.conn, org, nil)
	needs := types.Needs{enums.NeedCategoryWater: {Required: true, Quantity: 30}}

	merged := dbtest.CreateRequest(t, f.conn, func(r *models.AidRequest) {
		r.Status = enums.RequestStatusClosed
		r.IsDuplicate = true
		r.Needs = needs
	})
	duplicate := dbtest.CreateRequest(t, f.conn, func(r *models.AidRequest) {
		r.IsDuplicate = true
		r.Needs = needs
	})
	cancelled := dbtest.CreateRequest(t, f.conn, func(r *models.AidRequest) {
		r.Status = enums.RequestStatusCancelled
		r.Needs = needs
	})
	for _, id := range []uuid.UUID{merged.ID, duplicate.ID, cancelled.ID} {
		result, err := f.allocator.AutoMatch(ctx, id)
		require.Nil(t, result)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "request %s", id)
	}
	require.Equal(t, 100, reload[models.Offer](t, f.conn, water.ID).AvailableQuantity)
	require.Zero(t, reload[models.Organization](t, f.conn, org.ID).ActiveAssignments)
	require.Empty(t, f.notifier.created)

	fresh := dbtest.CreateRequest(t, f.conn, func(r *models.AidRequest) { r.Needs = needs })
	result, err := f.allocator.AutoMatch(ctx, fresh.ID)
	require.NoError(t, err)
	require.True(t, result.Success)

	_, err = f.allocator.AutoMatch(ctx, fresh.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "assigned requests are not matched twice")
	require.Equal(t, 70, reload[models.Offer](t, f.conn, water.ID).AvailableQuantity)
}
