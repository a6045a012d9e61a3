package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sebastianDLL/notification-svc/internal/config"
	"github.com/sebastianDLL/notification-svc/internal/models"
	"github.com/sebastianDLL/notification-svc/internal/rabbitmq"
)

// recorder keeps an ordered log of acks and sends so tests can assert the
// sequencing between message settlement and mail delivery.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) indexOf(ev string) int {
	for i, e := range r.snapshot() {
		if e == ev {
			return i
		}
	}
	return -1
}

func (r *recorder) waitFor(t *testing.T, ev string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.indexOf(ev) >= 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for event %q, got %v", ev, r.snapshot())
}

type fakeAcknowledger struct {
	rec         *recorder
	mu          sync.Mutex
	settled     map[uint64]int
	nackRequeue map[uint64]bool
}

func newFakeAcknowledger(rec *recorder) *fakeAcknowledger {
	return &fakeAcknowledger{
		rec:         rec,
		settled:     make(map[uint64]int),
		nackRequeue: make(map[uint64]bool),
	}
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	f.settled[tag]++
	f.mu.Unlock()
	f.rec.add(fmt.Sprintf("ack:%d", tag))
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	f.settled[tag]++
	f.nackRequeue[tag] = requeue
	f.mu.Unlock()
	f.rec.add(fmt.Sprintf("nack:%d", tag))
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func (f *fakeAcknowledger) settleCount(tag uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled[tag]
}

type fakeMailer struct {
	rec     *recorder
	mu      sync.Mutex
	failFor map[string]error
	sent    []string
}

func newFakeMailer(rec *recorder) *fakeMailer {
	return &fakeMailer{rec: rec, failFor: make(map[string]error)}
}

func (m *fakeMailer) Send(_ context.Context, recipient, subject, body string) error {
	m.rec.add("send:" + recipient)
	if err := m.failFor[recipient]; err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, recipient)
	m.mu.Unlock()
	return nil
}

type fakeOutbox struct {
	mu      sync.Mutex
	records []models.FailedDelivery
}

func (o *fakeOutbox) Record(_ context.Context, fd *models.FailedDelivery) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, *fd)
	return nil
}

func payload(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	body := map[string]any{
		"type":             "reservation_created",
		"patient_email":    "p@x.com",
		"patient_name":     "Ann",
		"doctor_email":     "d@x.com",
		"doctor_name":      "Dr. Lee",
		"appointment_date": "2025-06-15",
		"appointment_time": "10:30",
		"reservation_id":   "RES-001",
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func newTestWorker(m *fakeMailer, outbox Outbox) (*Worker, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	cfg := &config.WorkerConfig{
		Queue:       "medical_notifications",
		Prefetch:    1,
		SendTimeout: time.Second,
	}
	return New(cfg, nil, m, outbox, zap.New(core)), logs
}

func delivery(ack amqp.Acknowledger, tag uint64, body []byte) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body}
}

func TestHandleMessageValidEvent(t *testing.T) {
	rec := &recorder{}
	ack := newFakeAcknowledger(rec)
	m := newFakeMailer(rec)
	w, _ := newTestWorker(m, nil)

	w.handleMessage(delivery(ack, 1, payload(t, nil)))

	assert.Equal(t, []string{"p@x.com", "d@x.com"}, m.sent)
	assert.Equal(t, 1, ack.settleCount(1))
	assert.Equal(t, "ack:1", rec.snapshot()[len(rec.snapshot())-1])
}

func TestHandleMessagePoisonIsNackedWithoutRequeue(t *testing.T) {
	rec := &recorder{}
	ack := newFakeAcknowledger(rec)
	m := newFakeMailer(rec)
	w, logs := newTestWorker(m, nil)

	w.handleMessage(delivery(ack, 7, payload(t, map[string]any{"patient_email": nil})))

	assert.Empty(t, m.sent, "a poison message must never produce deliveries")
	require.Equal(t, 1, ack.settleCount(7), "exactly one settle per message")
	assert.False(t, ack.nackRequeue[7], "poison messages must not be requeued")
	assert.Equal(t, []string{"nack:7"}, rec.snapshot())

	entries := logs.FilterLevelExact(zap.ErrorLevel).All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "patient_email", entries[0].ContextMap()["field"])
}

func TestHandleMessageUnknownTypeIsAcked(t *testing.T) {
	rec := &recorder{}
	ack := newFakeAcknowledger(rec)
	m := newFakeMailer(rec)
	w, logs := newTestWorker(m, nil)

	w.handleMessage(delivery(ack, 3, payload(t, map[string]any{"type": "unknown_type"})))

	assert.Empty(t, m.sent)
	assert.Equal(t, 1, ack.settleCount(3))
	assert.Equal(t, []string{"ack:3"}, rec.snapshot())

	warns := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warns, 1)
	assert.Equal(t, "unknown_type", warns[0].ContextMap()["type"])
}

func TestHandleMessagePartialDeliveryFailureStillAcks(t *testing.T) {
	rec := &recorder{}
	ack := newFakeAcknowledger(rec)
	m := newFakeMailer(rec)
	m.failFor["d@x.com"] = errors.New("smtp boom")
	outbox := &fakeOutbox{}
	w, _ := newTestWorker(m, outbox)

	w.handleMessage(delivery(ack, 5, payload(t, nil)))

	// The patient copy went out, the doctor copy failed, the message is
	// acked anyway: mail failures never requeue the event.
	assert.Equal(t, []string{"p@x.com"}, m.sent)
	require.Equal(t, 1, ack.settleCount(5))
	assert.Equal(t, "ack:5", rec.snapshot()[len(rec.snapshot())-1])

	require.Len(t, outbox.records, 1)
	fd := outbox.records[0]
	assert.Equal(t, "d@x.com", fd.Recipient)
	assert.Equal(t, "RES-001", fd.ReservationID)
	assert.Contains(t, fd.Reason, "smtp boom")
}

func TestHandleMessageSettledExactlyOnce(t *testing.T) {
	rec := &recorder{}
	ack := newFakeAcknowledger(rec)
	m := newFakeMailer(rec)
	m.failFor["p@x.com"] = errors.New("down")
	m.failFor["d@x.com"] = errors.New("down")
	w, _ := newTestWorker(m, nil)

	w.handleMessage(delivery(ack, 1, payload(t, nil)))
	w.handleMessage(delivery(ack, 2, payload(t, map[string]any{"type": nil})))
	w.handleMessage(delivery(ack, 3, payload(t, map[string]any{"type": "mystery"})))

	for tag := uint64(1); tag <= 3; tag++ {
		assert.Equal(t, 1, ack.settleCount(tag), "tag %d must be settled exactly once", tag)
	}
}

func TestProcessMessagesIsSequential(t *testing.T) {
	rec := &recorder{}
	ack := newFakeAcknowledger(rec)
	m := newFakeMailer(rec)
	w, _ := newTestWorker(m, nil)

	deliveries := make(chan amqp.Delivery, 2)
	deliveries <- delivery(ack, 1, payload(t, nil))
	deliveries <- delivery(ack, 2, payload(t, map[string]any{
		"patient_email": "p2@x.com",
		"doctor_email":  "d2@x.com",
	}))

	go w.processMessages(deliveries)
	rec.waitFor(t, "ack:2")
	w.cancel()

	// Message A must be fully settled before any of message B's deliveries
	// are attempted: with prefetch 1 the broker enforces this, and the
	// sequential loop must not reorder it.
	ackA := rec.indexOf("ack:1")
	firstB := rec.indexOf("send:p2@x.com")
	require.GreaterOrEqual(t, ackA, 0)
	require.GreaterOrEqual(t, firstB, 0)
	assert.Less(t, ackA, firstB)
}

func TestProcessMessagesStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	m := newFakeMailer(rec)
	w, _ := newTestWorker(m, nil)

	deliveries := make(chan amqp.Delivery)
	done := make(chan struct{})
	go func() {
		w.processMessages(deliveries)
		close(done)
	}()

	w.cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processMessages did not stop after cancellation")
	}
	assert.Empty(t, rec.snapshot())
}

func TestStopDuringConsumerRestartReturnsPromptly(t *testing.T) {
	rec := &recorder{}
	m := newFakeMailer(rec)
	cfg := &config.WorkerConfig{
		Queue:       "medical_notifications",
		Prefetch:    1,
		SendTimeout: time.Second,
	}
	// A client that was never connected: IsHealthy is false, so the restart
	// loop keeps waiting until shutdown cancels it.
	conn := rabbitmq.New(&config.RabbitMQConfig{}, zap.NewNop())
	w := New(cfg, conn, m, nil, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.restartConsuming()
		close(done)
	}()

	require.NoError(t, w.Stop())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("restart loop did not stop after shutdown")
	}
}
