package requests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/pkg/db/dbtest"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

type enqueued struct {
	id       uuid.UUID
	priority enums.Priority
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueued
	err   error
}

func (f *fakeEnqueuer) Enqueue(id uuid.UUID, p enums.Priority) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, enqueued{id: id, priority: p})
	return f.err
}

func newTestService(t *testing.T) (*Service, *fakeEnqueuer, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	q := &fakeEnqueuer{}
	svc, err := NewService(NewRepository(conn), q, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc, q, conn
}

func coord(v float64) *float64 { return &v }

func validInput() SubmitInput {
	return SubmitInput{
		Description: "Need drinking water for the shelter",
		Lat:         coord(dbtest.Istanbul.Lat),
		Lng:         coord(dbtest.Istanbul.Lng),
		Needs: map[string]NeedInput{
			"water": {Required: true, Quantity: 40},
		},
		Beneficiaries:       BeneficiariesInput{Adults: 4, Children: 2},
		SelfDeclaredUrgency: "low",
	}
}

func TestSubmitPersistsAndEnqueues(t *testing.T) {
	svc, q, conn := newTestService(t)

	req, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, req.ID)
	require.False(t, req.SOSDetected)
	require.Equal(t, enums.PriorityLow, req.Priority)
	require.Equal(t, "en", req.Language)

	var stored models.AidRequest
	require.NoError(t, conn.First(&stored, "id = ?", req.ID).Error)
	require.Equal(t, enums.RequestStatusNew, stored.Status)
	require.Equal(t, 40, stored.Needs.QuantityFor(enums.NeedCategoryWater))
	require.Equal(t, 6, stored.Beneficiaries.Total())
	require.Equal(t, ActionSubmitted, stored.Timeline[0].Action)

	require.Equal(t, []enqueued{{id: req.ID, priority: enums.PriorityLow}}, q.calls)

	unassigned, err := NewRepository(conn).ListUnassigned(context.Background(), []enums.RequestStatus{enums.RequestStatusNew}, 10)
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
}

func TestSubmitClassifiesDistress(t *testing.T) {
	svc, q, _ := newTestService(t)
	in := validInput()
	in.Description = "We are trapped, help"
	in.SelfDeclaredUrgency = ""
	in.Needs = map[string]NeedInput{"rescue": {Required: true}}

	req, err := svc.Submit(context.Background(), in)
	require.NoError(t, err)
	require.True(t, req.SOSDetected)
	// rescue 3 + keyword hit 7 + trapped 4
	require.Equal(t, enums.PriorityCritical, req.Priority)
	require.Equal(t, enums.PriorityMedium, req.SelfDeclaredUrgency)
	require.Contains(t, []string(req.SOSIndicators), "keyword:trapped")
	require.Equal(t, ActionSOSDetected, req.Timeline[len(req.Timeline)-1].Action)
	require.Equal(t, enums.PriorityCritical, q.calls[0].priority)
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	svc, q, conn := newTestService(t)
	cases := map[string]struct {
		mutate func(*SubmitInput)
		field  string
	}{
		"null island":   {func(in *SubmitInput) { in.Lat, in.Lng = coord(0), coord(0) }, "lat"},
		"missing lat":   {func(in *SubmitInput) { in.Lat = nil }, "lat"},
		"missing lng":   {func(in *SubmitInput) { in.Lng = nil }, "lng"},
		"latitude":      {func(in *SubmitInput) { in.Lat = coord(91) }, "lat"},
		"longitude":     {func(in *SubmitInput) { in.Lng = coord(-181) }, "lng"},
		"category":      {func(in *SubmitInput) { in.Needs = map[string]NeedInput{"snacks": {Required: true}} }, "needs[snacks]"},
		"quantity":      {func(in *SubmitInput) { in.Needs = map[string]NeedInput{"food": {Quantity: -1}} }, "needs[food].quantity"},
		"urgency":       {func(in *SubmitInput) { in.SelfDeclaredUrgency = "urgent" }, "self_declared_urgency"},
		"beneficiaries": {func(in *SubmitInput) { in.Beneficiaries.Infants = -2 }, "beneficiaries.infants"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Submit(context.Background(), in)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
			details, ok := pkgerrors.As(err).Details().(map[string]string)
			require.True(t, ok)
			require.Contains(t, details, tc.field)
		})
	}

	require.Empty(t, q.calls)
	var count int64
	require.NoError(t, conn.Model(&models.AidRequest{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubmitReusedIDConflicts(t *testing.T) {
	svc, q, _ := newTestService(t)
	id := uuid.New()
	in := validInput()
	in.ID = &id

	_, err := svc.Submit(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Len(t, q.calls, 1)
}

func TestSubmitSurvivesEnqueueFailure(t *testing.T) {
	svc, q, _ := newTestService(t)
	q.err = errors.New("queue closed")

	req, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, req)
}

func TestAddMessageEscalatesAndCountsRepeats(t *testing.T) {
	svc, q, conn := newTestService(t)
	ctx := context.Background()
	req, err := svc.Submit(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.AddMessage(ctx, req.ID, MessageInput{Text: "still waiting"})
	require.NoError(t, err)
	require.Equal(t, enums.PriorityLow, updated.Priority)
	require.Len(t, q.calls, 1, "no escalation, no re-enqueue")

	updated, err = svc.AddMessage(ctx, req.ID, MessageInput{Text: " Still waiting "})
	require.NoError(t, err)
	require.Equal(t, 1, updated.RepeatedMessageCount)

	updated, err = svc.AddMessage(ctx, req.ID, MessageInput{Text: "help, we are trapped"})
	require.NoError(t, err)
	require.True(t, updated.SOSDetected)
	require.Equal(t, enums.PriorityCritical, updated.Priority)
	require.Len(t, q.calls, 2)
	require.Equal(t, enums.PriorityCritical, q.calls[1].priority)

	var stored models.AidRequest
	require.NoError(t, conn.First(&stored, "id = ?", req.ID).Error)
	require.Len(t, stored.Messages, 3)
	require.Equal(t, enums.PriorityCritical, stored.Priority)
	require.Equal(t, ActionEscalated, stored.Timeline[len(stored.Timeline)-1].Action)

	_, err = svc.AddMessage(ctx, uuid.New(), MessageInput{Text: "hello"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = svc.AddMessage(ctx, req.ID, MessageInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryStatusAndUnassigned(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	fresh := dbtest.CreateRequest(t, conn, nil)
	dbtest.CreateRequest(t, conn, func(r *models.AidRequest) { r.AssignmentIDs = append(r.AssignmentIDs, uuid.New()) })
	dbtest.CreateRequest(t, conn, func(r *models.AidRequest) { r.IsDuplicate = true })

	rows, err := repo.ListUnassigned(ctx, []enums.RequestStatus{enums.RequestStatusNew}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, fresh.ID, rows[0].ID)

	require.NoError(t, repo.UpdateStatus(ctx, fresh.ID, enums.RequestStatusCancelled))
	got, err := repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, enums.RequestStatusCancelled, got.Status)

	err = repo.UpdateStatus(ctx, uuid.New(), enums.RequestStatusClosed)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{})
	_, err := NewService(nil, &fakeEnqueuer{}, logg)
	require.Error(t, err)
	_, err = NewService(NewRepository(nil), nil, logg)
	require.Error(t, err)
	_, err = NewService(NewRepository(nil), &fakeEnqueuer{}, nil)
	require.Error(t, err)
}
