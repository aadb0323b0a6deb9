// Package requests handles intake: validation, urgency classification,
// persistence, and handing new requests to the dispatcher.
package requests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/internal/urgency"
	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
	"github.com/angelmondragon/relief-dispatch/pkg/types"
)

// Timeline actions written at intake.
const (
	ActionSubmitted   = "submitted"
	ActionSOSDetected = "sos_detected"
	ActionFollowUp    = "follow_up"
	ActionEscalated   = "escalated"

	defaultLanguage = "en"
	timelineActor   = "intake"
)

// Enqueuer hands a request to the dispatcher.
type Enqueuer interface {
	Enqueue(requestID uuid.UUID, priority enums.Priority) error
}

type repository interface {
	Create(ctx context.Context, req *models.AidRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AidRequest, error)
	SaveFollowUp(ctx context.Context, req *models.AidRequest) error
}

// Service accepts and updates aid requests.
type Service struct {
	repo     repository
	enqueuer Enqueuer
	validate *validator.Validate
	logg     *logger.Logger
	now      func() time.Time
}

// NewService validates dependencies.
func NewService(repo repository, enqueuer Enqueuer, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if enqueuer == nil {
		return nil, fmt.Errorf("enqueuer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:     repo,
		enqueuer: enqueuer,
		validate: newValidator(),
		logg:     logg,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit validates, classifies, stores, and enqueues a request. A failed
// enqueue is logged only; backfill picks the request up later.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.AidRequest, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	req := buildRequest(in, s.now())
	result := urgency.CheckSOSStatus(&req)
	if result.SOSDetected {
		req.Timeline = req.Timeline.Append(types.TimelineEntry{
			Action: ActionSOSDetected,
			Note:   strings.Join(result.Indicators, ","),
			Actor:  timelineActor,
			At:     req.CreatedAt,
		})
	}

	if err := s.repo.Create(ctx, &req); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(s.logg.WithAidRequestID(ctx, req.ID.String()), map[string]any{
		"priority":     req.Priority.String(),
		"sos_detected": req.SOSDetected,
	})
	s.logg.Info(ctx, "aid request accepted")
	s.enqueue(ctx, req)
	return &req, nil
}

// AddMessage appends a follow-up, reclassifies, and re-enqueues the request
// when its priority rises. Priority never drops on a follow-up.
func (s *Service) AddMessage(ctx context.Context, id uuid.UUID, in MessageInput) (*models.AidRequest, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithAidRequestID(ctx, req.ID.String())

	text := strings.TrimSpace(in.Text)
	if last := req.Messages.Last(1); len(last) == 1 && strings.EqualFold(strings.TrimSpace(last[0].Text), text) {
		req.RepeatedMessageCount++
	}
	now := s.now()
	req.Messages = append(req.Messages, types.Message{Text: text, SentAt: now})
	req.Timeline = req.Timeline.Append(types.TimelineEntry{Action: ActionFollowUp, Actor: timelineActor, At: now})

	previous := req.Priority
	urgency.CheckSOSStatus(req)
	if req.Priority.Rank() < previous.Rank() {
		req.Priority = previous
	}
	escalated := req.Priority.Rank() > previous.Rank()
	if escalated {
		req.Timeline = req.Timeline.Append(types.TimelineEntry{
			Action: ActionEscalated,
			Note:   fmt.Sprintf("%s -> %s", previous, req.Priority),
			Actor:  timelineActor,
			At:     now,
		})
	}

	if err := s.repo.SaveFollowUp(ctx, req); err != nil {
		return nil, err
	}
	if escalated && req.Status.IsDispatchable() {
		s.enqueue(ctx, *req)
	}
	return req, nil
}

// Get loads a request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.AidRequest, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) enqueue(ctx context.Context, req models.AidRequest) {
	if err := s.enqueuer.Enqueue(req.ID, req.Priority); err != nil {
		s.logg.Error(ctx, "enqueue failed; request left for backfill", err)
	}
}

func buildRequest(in SubmitInput, now time.Time) models.AidRequest {
	lang := strings.ToLower(strings.TrimSpace(in.Language))
	if lang == "" {
		lang = defaultLanguage
	}
	declared := enums.Priority(in.SelfDeclaredUrgency)
	if declared == "" {
		declared = enums.PriorityMedium
	}

	needs := make(types.Needs, len(in.Needs))
	for raw, need := range in.Needs {
		needs[enums.NeedCategory(raw)] = types.Need{Required: need.Required, Quantity: need.Quantity}
	}

	req := models.AidRequest{
		Description: strings.TrimSpace(in.Description),
		Language:    lang,
		Location:    types.Point{Lat: *in.Lat, Lng: *in.Lng},
		Needs:       needs,
		Beneficiaries: types.Beneficiaries{
			Adults:   in.Beneficiaries.Adults,
			Children: in.Beneficiaries.Children,
			Elderly:  in.Beneficiaries.Elderly,
			Infants:  in.Beneficiaries.Infants,
		},
		Medical: types.MedicalInfo{
			Conditions: in.Medical.Conditions,
			Pregnant:   in.Medical.Pregnant,
		},
		Device: types.DeviceSignals{
			BatteryLevel:   in.Device.BatteryLevel,
			SignalStrength: in.Device.SignalStrength,
		},
		SelfDeclaredUrgency: declared,
		Priority:            declared,
		Status:              enums.RequestStatusNew,
		CreatedAt:           now,
	}
	if in.ID != nil {
		req.ID = *in.ID
	}
	req.Timeline = req.Timeline.Append(types.TimelineEntry{Action: ActionSubmitted, Actor: timelineActor, At: now})
	return req
}
