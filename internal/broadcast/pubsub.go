package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/pkg/db/models"
	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	"github.com/angelmondragon/relief-dispatch/pkg/logger"
)

const (
	envelopeVersion       = 1
	defaultPublishTimeout = 10 * time.Second
)

// Envelope is the stable message body published for every event.
type Envelope struct {
	Version    int                      `json:"version"`
	EventID    string                   `json:"eventId"`
	EventType  enums.BroadcastEventType `json:"eventType"`
	OccurredAt time.Time                `json:"occurredAt"`
	Data       json.RawMessage          `json:"data"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
}

// PubSubNotifier publishes envelopes to a Pub/Sub topic in the background.
type PubSubNotifier struct {
	pub     publisher
	topic   string
	logg    *logger.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewPubSubNotifier validates its dependencies and returns a notifier.
func NewPubSubNotifier(pub publisher, topic string, logg *logger.Logger) (*PubSubNotifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("broadcast topic required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubNotifier{
		pub:     pub,
		topic:   topic,
		logg:    logg,
		timeout: defaultPublishTimeout,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (n *PubSubNotifier) AssignmentCreated(ctx context.Context, a models.Assignment) {
	n.publish(ctx, enums.EventAssignmentCreated, a.RequestID, assignmentEvent(a))
}

func (n *PubSubNotifier) AssignmentUpdated(ctx context.Context, a models.Assignment) {
	n.publish(ctx, enums.EventAssignmentUpdated, a.RequestID, assignmentEvent(a))
}

func (n *PubSubNotifier) RequestStatusChanged(ctx context.Context, requestID uuid.UUID, from, to enums.RequestStatus) {
	n.publish(ctx, enums.EventRequestStatusChanged, requestID, RequestStatusEvent{RequestID: requestID, From: from, To: to})
}

// Wait blocks until in-flight publishes finish.
func (n *PubSubNotifier) Wait() {
	n.wg.Wait()
}

func (n *PubSubNotifier) publish(ctx context.Context, eventType enums.BroadcastEventType, requestID uuid.UUID, data any) {
	logCtx := n.logg.WithFields(ctx, map[string]any{
		"event_type":     eventType.String(),
		"aid_request_id": requestID.String(),
	})

	payload, err := json.Marshal(data)
	if err != nil {
		n.logg.Error(logCtx, "encode broadcast payload", err)
		return
	}
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: n.now(),
		Data:       payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		n.logg.Error(logCtx, "encode broadcast envelope", err)
		return
	}
	attrs := map[string]string{
		"event_type": eventType.String(),
		"event_id":   env.EventID,
		"request_id": requestID.String(),
	}

	// The caller's transaction has committed; its cancellation must not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(logCtx), n.timeout)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		id, err := n.pub.Publish(pubCtx, n.topic, body, attrs)
		if err != nil {
			n.logg.Error(pubCtx, "broadcast publish failed", err)
			return
		}
		n.logg.Debug(n.logg.WithField(pubCtx, "message_id", id), "broadcast published")
	}()
}
