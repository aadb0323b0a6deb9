package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/relief-dispatch/internal/allocation"
	"github.com/angelmondragon/relief-dispatch/internal/dispatch"
	"github.com/angelmondragon/relief-dispatch/internal/duplicates"
	"github.com/angelmondragon/relief-dispatch/internal/matching"
	"github.com/angelmondragon/relief-dispatch/internal/requests"
	"github.com/angelmondragon/relief-dispatch/pkg/config"
	"github.com/angelmondragon/relief-dispatch/pkg/db"
	"github.com/angelmondragon/relief-dispatch/pkg/db/dbtest"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/metrics"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type testServer struct {
	handler http.Handler
	conn    *gorm.DB
}

func newTestServer(t *testing.T, dbPinger stubPinger) testServer {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	reg := prometheus.NewRegistry()

	scorer, err := matching.NewScorer(matching.NewRepository(conn), config.DefaultMatching(), logg)
	require.NoError(t, err)
	allocator, err := allocation.NewAllocator(allocation.Params{
		DB:         db.Wrap(conn),
		Repository: allocation.NewRepository(conn),
		Scorer:     scorer,
		Logger:     logg,
	})
	require.NoError(t, err)

	requestRepo := requests.NewRepository(conn)
	scheduler, err := dispatch.NewScheduler(dispatch.Params{
		Matcher:  allocator,
		Requests: requestRepo,
		Config:   config.DefaultDispatch(),
		Metrics:  metrics.NewDispatchMetrics(reg),
		Logger:   logg,
	})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	t.Cleanup(func() {
		scheduler.Stop()
		cancel()
	})

	intake, err := requests.NewService(requestRepo, scheduler, logg)
	require.NoError(t, err)
	dupes, err := duplicates.NewService(duplicates.ServiceParams{
		Repository: duplicates.NewRepository(conn),
		DB:         db.Wrap(conn),
		Config:     config.DuplicatesConfig{RadiusMeters: 500, Threshold: 0.7, Lookback: 72 * time.Hour, MaxCandidates: 200, MaxResults: 50},
		Logger:     logg,
	})
	require.NoError(t, err)

	handler := NewRouter(Deps{
		Config:     &config.Config{App: config.AppConfig{Env: "test"}},
		Logger:     logg,
		DB:         dbPinger,
		Gatherer:   reg,
		HTTP:       metrics.NewHTTPMetrics(reg),
		Requests:   intake,
		Dispatcher: scheduler,
		Backfiller: scheduler,
		Lister:     allocator,
		Duplicates: dupes,
	})
	return testServer{handler: handler, conn: conn}
}

func (s testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	s.handler.ServeHTTP(resp, req)

	var env envelope
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	}
	return resp, env
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	resp, _ := srv.do(t, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "test", resp.Header().Get("X-Relief-Env"))
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))

	resp, env := srv.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, string(env.Data), `"redis":"disabled"`)

	down := newTestServer(t, stubPinger{err: errors.New("connection refused")})
	resp, env = down.do(t, http.MethodGet, "/health/ready", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
	require.Equal(t, "DEPENDENCY_ERROR", env.Error.Code)
}

func TestSubmitRequestValidatesAndCreates(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	resp, env := srv.do(t, http.MethodPost, "/api/v1/requests", `{"lat":95,"lng":28.9,"needs":{"gold":{"required":true}}}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	require.Contains(t, env.Error.Details, "lat")

	resp, env = srv.do(t, http.MethodPost, "/api/v1/requests", `{"lng":28.9,"description":"no latitude sent"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, env.Error.Details, "lat")

	resp, env = srv.do(t, http.MethodPost, "/api/v1/requests",
		`{"description":"trapped under rubble, child injured","lat":41.0082,"lng":28.9784,"needs":{"rescue":{"required":true}},"beneficiaries":{"adults":1,"children":1}}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	var created struct {
		ID          uuid.UUID `json:"id"`
		Priority    string    `json:"priority"`
		SOSDetected bool      `json:"sos_detected"`
		Status      string    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEqual(t, uuid.Nil, created.ID)
	require.True(t, created.SOSDetected)
	require.Equal(t, string(enums.PrioritySOS), created.Priority)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/requests/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, string(env.Data), created.ID.String())

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/requests/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/requests/not-an-id", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAutoMatchAndCancelThroughScheduler(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	org := dbtest.CreateOrganization(t, srv.conn, nil)
	offer := dbtest.CreateOffer(t, srv.conn, org, nil)
	req := dbtest.CreateRequest(t, srv.conn, func(r *models.AidRequest) {
		r.Priority = enums.PriorityHigh
		r.Needs = types.Needs{enums.NeedCategoryWater: {Required: true, Quantity: 30}}
	})

	resp, env := srv.do(t, http.MethodPost, "/api/v1/requests/"+req.ID.String()+"/auto-match", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var match struct {
		Success     bool `json:"success"`
		Assignments []struct {
			ID       uuid.UUID  `json:"id"`
			OfferID  *uuid.UUID `json:"offer_id"`
			Quantity int        `json:"quantity"`
		} `json:"assignments"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &match))
	require.True(t, match.Success)
	require.Len(t, match.Assignments, 1)
	require.Equal(t, offer.ID, *match.Assignments[0].OfferID)

	resp, env = srv.do(t, http.MethodPost, "/api/v1/requests/"+req.ID.String()+"/auto-match", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, "STATE_CONFLICT", env.Error.Code)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/requests/"+req.ID.String()+"/assignments", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, string(env.Data), match.Assignments[0].ID.String())

	assignmentPath := "/api/v1/assignments/" + match.Assignments[0].ID.String() + "/cancel"
	resp, _ = srv.do(t, http.MethodPost, assignmentPath, `{"status":"completed"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp, env = srv.do(t, http.MethodPost, assignmentPath, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, string(env.Data), `"status":"cancelled"`)

	var stored models.Offer
	require.NoError(t, srv.conn.First(&stored, "id = ?", offer.ID).Error)
	require.Equal(t, 100, stored.AvailableQuantity)

	resp, env = srv.do(t, http.MethodPost, assignmentPath, "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, "STATE_CONFLICT", env.Error.Code)
}

func TestEnqueueRejectsClosedRequest(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	closed := dbtest.CreateRequest(t, srv.conn, func(r *models.AidRequest) { r.Status = enums.RequestStatusClosed })

	resp, env := srv.do(t, http.MethodPost, "/api/v1/requests/"+closed.ID.String()+"/enqueue", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Equal(t, "STATE_CONFLICT", env.Error.Code)
}

func TestDispatchAndDuplicateRoutes(t *testing.T) {
	srv := newTestServer(t, stubPinger{})

	resp, env := srv.do(t, http.MethodPost, "/api/v1/dispatch/backfill", `{"statuses":["new"],"limit":10}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, string(env.Data), `"success":true`)

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/dispatch/backfill", `{"statuses":["lost"]}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/dispatch/queue", "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/duplicates?threshold=0.9", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `[]`, string(env.Data))

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/duplicates?threshold=2", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	same := uuid.NewString()
	resp, env = srv.do(t, http.MethodPost, "/api/v1/duplicates/merge",
		`{"keep_id":"`+same+`","discard_id":"`+same+`","reviewer":"ops"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Contains(t, env.Error.Details, "discard_id")

	resp, _ = srv.do(t, http.MethodPost, "/api/v1/duplicates/not-duplicate",
		`{"request_a":"`+uuid.NewString()+`","request_b":"`+uuid.NewString()+`","reviewer":"ops"}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, stubPinger{})
	srv.do(t, http.MethodGet, "/health/live", "")

	resp, _ := srv.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "relief_http_request_duration_seconds")
	require.Contains(t, resp.Body.String(), "relief_dispatch_queue_depth")
}
