package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memEventLog struct {
	processed map[string]bool
}

func (m *memEventLog) IsEventProcessed(_ context.Context, id string) (bool, error) {
	return m.processed[id], nil
}

func (m *memEventLog) MarkEventProcessed(_ context.Context, id, _ string) error {
	m.processed[id] = true
	return nil
}

type stubConfirmer struct {
	calls []string
	err   error
}

func (s *stubConfirmer) HandleConfirmation(_ context.Context, ref, outcome string) (*service.ConfirmationResult, error) {
	s.calls = append(s.calls, ref+":"+outcome)
	if s.err != nil {
		return nil, s.err
	}
	return &service.ConfirmationResult{
		Payment: &models.Payment{ExternalReference: ref, Status: outcome},
		Order:   &models.Order{ID: 7},
	}, nil
}

// sliceSource replays fixed messages through the handler
type sliceSource struct {
	messages []kafka.Message
	errs     []error
}

func (s *sliceSource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, m := range s.messages {
		s.errs = append(s.errs, handler(ctx, m))
	}
	return nil
}

func (s *sliceSource) Close() error { return nil }

func confirmation(t *testing.T, id, ref, outcome string) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(models.PaymentConfirmedEvent{
		BaseEvent:         models.BaseEvent{EventID: id, EventType: models.EventTypePaymentConfirmed},
		ExternalReference: ref,
		Outcome:           outcome,
	})
	require.NoError(t, err)
	return kafka.Message{Value: raw}
}

func TestConfirmationWorkerProcessesOnce(t *testing.T) {
	log := &memEventLog{processed: map[string]bool{}}
	confirmer := &stubConfirmer{}
	source := &sliceSource{messages: []kafka.Message{
		confirmation(t, "evt-1", "GW-1", models.OutcomePaid),
		confirmation(t, "evt-1", "GW-1", models.OutcomePaid),
		confirmation(t, "evt-2", "GW-2", models.OutcomeFailed),
	}}

	w := NewConfirmationWorker(source, log, confirmer)
	require.NoError(t, w.Start(context.Background()))

	assert.Equal(t, []string{"GW-1:PAID", "GW-2:FAILED"}, confirmer.calls)
	for _, err := range source.errs {
		assert.NoError(t, err)
	}
	assert.True(t, log.processed["evt-2"])
}

func TestConfirmationWorkerRetriesTransientErrors(t *testing.T) {
	log := &memEventLog{processed: map[string]bool{}}
	confirmer := &stubConfirmer{err: errors.New("database is down")}
	w := NewConfirmationWorker(&sliceSource{}, log, confirmer)

	err := w.HandlePaymentConfirmed(context.Background(), &models.PaymentConfirmedEvent{
		BaseEvent:         models.BaseEvent{EventID: "evt-3"},
		ExternalReference: "GW-3",
		Outcome:           models.OutcomePaid,
	})
	assert.Error(t, err)
	assert.False(t, log.processed["evt-3"])
}

func TestConfirmationWorkerDropsUnknownPayments(t *testing.T) {
	log := &memEventLog{processed: map[string]bool{}}
	confirmer := &stubConfirmer{err: service.ErrPaymentNotFound}
	w := NewConfirmationWorker(&sliceSource{}, log, confirmer)

	err := w.HandlePaymentConfirmed(context.Background(), &models.PaymentConfirmedEvent{
		BaseEvent:         models.BaseEvent{EventID: "evt-4"},
		ExternalReference: "GW-404",
		Outcome:           models.OutcomePaid,
	})
	assert.NoError(t, err)
	assert.True(t, log.processed["evt-4"])
}
