package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letinc/beacon/internal/event"
	"github.com/letinc/beacon/internal/queue"
)

// fakeSink records appends per table and can fail selected tables.
type fakeSink struct {
	mu      sync.Mutex
	appends map[string][][][]string // table -> list of row batches
	fail    map[string]error
}

func newFakeSink() *fakeSink {
	return &fakeSink{
		appends: make(map[string][][][]string),
		fail:    make(map[string]error),
	}
}

func (f *fakeSink) Append(_ context.Context, table string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[table]; err != nil {
		return err
	}
	f.appends[table] = append(f.appends[table], rows)
	return nil
}

// rows flattens all recorded batches for a table.
func (f *fakeSink) rows(table string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all [][]string
	for _, batch := range f.appends[table] {
		all = append(all, batch...)
	}
	return all
}

func (f *fakeSink) callCount(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appends[table])
}

func sentEvent(tid string) event.TrackingEvent {
	return event.TrackingEvent{
		Timestamp:     "2025-04-04T12:00:00Z",
		Status:        event.StatusSent,
		TrackingID:    tid,
		RecipientID:   "R1",
		RecipientName: "Acme",
		Subject:       "Hi",
		BodySnippet:   "hello",
	}
}

func openEvent(tid string) event.TrackingEvent {
	return event.TrackingEvent{
		Timestamp:     "2025-04-04T12:01:00Z",
		Status:        event.StatusOpen,
		TrackingID:    tid,
		RecipientID:   "R1",
		RecipientName: "Acme",
		IPAddress:     "203.0.113.9",
		UserAgent:     "Mozilla/5.0",
	}
}

func clickEvent(tid, url string) event.TrackingEvent {
	return event.TrackingEvent{
		Timestamp:     "2025-04-04T12:02:00Z",
		Status:        event.StatusClick,
		TrackingID:    tid,
		RecipientID:   "R1",
		RecipientName: "Acme",
		URL:           url,
		LinkID:        "L1",
		IPAddress:     "203.0.113.9",
		UserAgent:     "Mozilla/5.0",
	}
}

func TestSentLogRowsProjection(t *testing.T) {
	batch := []event.TrackingEvent{sentEvent("T1"), openEvent("T1"), clickEvent("T1", "https://acme.test/")}

	rows := SentLogRows(batch)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"T1", "2025-04-04T12:00:00Z", "R1", "Acme", "Hi", "hello"}, rows[0])
}

func TestEventLogRowsProjection(t *testing.T) {
	batch := []event.TrackingEvent{sentEvent("T1"), clickEvent("T1", "https://acme.test/")}

	rows := EventLogRows(batch)
	require.Len(t, rows, 2)
	// Absent fields render as empty strings.
	assert.Equal(t, []string{"2025-04-04T12:00:00Z", "sent", "T1", "R1", "Acme", "", "", "", ""}, rows[0])
	assert.Equal(t, []string{"2025-04-04T12:02:00Z", "click", "T1", "R1", "Acme", "https://acme.test/", "203.0.113.9", "Mozilla/5.0", "L1"}, rows[1])
}

func TestFlushCyclePartitionsBatch(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	d := New(q, s, Config{Interval: time.Hour})

	// The end-to-end shape: one send, two opens, one click.
	q.Push(sentEvent("T1"))
	q.Push(openEvent("T1"))
	q.Push(openEvent("T1"))
	q.Push(clickEvent("T1", "https://acme.test/"))

	d.flushCycle(context.Background())

	sentRows := s.rows(TableSentLog)
	require.Len(t, sentRows, 1)
	assert.Equal(t, "T1", sentRows[0][0])

	eventRows := s.rows(TableEventLog)
	require.Len(t, eventRows, 4)
	assert.Equal(t, "sent", eventRows[0][1])
	assert.Equal(t, "open", eventRows[1][1])
	assert.Equal(t, "open", eventRows[2][1])
	assert.Equal(t, "click", eventRows[3][1])
	for _, row := range eventRows {
		assert.Equal(t, "R1", row[3])
	}

	assert.Equal(t, 0, q.Len())
}

func TestFlushCycleEmptyQueueSkipsSink(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	d := New(q, s, Config{Interval: time.Hour})

	d.flushCycle(context.Background())

	assert.Equal(t, 0, s.callCount(TableSentLog))
	assert.Equal(t, 0, s.callCount(TableEventLog))
}

func TestFlushCycleNoSentEventsSkipsSentLog(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	d := New(q, s, Config{Interval: time.Hour})

	q.Push(openEvent("T1"))
	d.flushCycle(context.Background())

	assert.Equal(t, 0, s.callCount(TableSentLog))
	assert.Equal(t, 1, s.callCount(TableEventLog))
}

func TestPartitionFailureIsIsolated(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	s.fail[TableSentLog] = errors.New("quota exceeded")
	d := New(q, s, Config{Interval: time.Hour})

	q.Push(sentEvent("T1"))
	q.Push(openEvent("T1"))

	d.flushCycle(context.Background())

	// sent-log failed and was dropped; event-log still got both rows.
	assert.Empty(t, s.rows(TableSentLog))
	assert.Len(t, s.rows(TableEventLog), 2)

	// The batch is not requeued.
	assert.Equal(t, 0, q.Len())
}

// blockingSink hangs every append until the call context expires.
type blockingSink struct{}

func (blockingSink) Append(ctx context.Context, _ string, _ [][]string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSinkTimeoutBoundsFlushCycle(t *testing.T) {
	q := queue.New()
	d := New(q, blockingSink{}, Config{Interval: time.Hour, SinkTimeout: 50 * time.Millisecond})

	q.Push(sentEvent("T1"))
	q.Push(openEvent("T1"))

	start := time.Now()
	d.flushCycle(context.Background())
	elapsed := time.Since(start)

	// Both partitions hit the sink, each bounded by its own deadline.
	assert.Less(t, elapsed, time.Second)

	// The timed-out batch is dropped like any other failed append.
	assert.Equal(t, 0, q.Len())
}

func TestFlushCycleRespectsMaxDrain(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	d := New(q, s, Config{Interval: time.Hour, MaxDrain: 3})

	for i := 0; i < 5; i++ {
		q.Push(openEvent("T1"))
	}

	d.flushCycle(context.Background())
	assert.Len(t, s.rows(TableEventLog), 3)
	assert.Equal(t, 2, q.Len())

	d.flushCycle(context.Background())
	assert.Len(t, s.rows(TableEventLog), 5)
	assert.Equal(t, 0, q.Len())
}

func TestLoopSurvivesSinkFailure(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	s.fail[TableEventLog] = errors.New("down")
	d := New(q, s, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	q.Push(openEvent("T1"))
	time.Sleep(30 * time.Millisecond)

	// Sink recovers; the loop must still be alive to deliver new events.
	s.mu.Lock()
	delete(s.fail, TableEventLog)
	s.mu.Unlock()

	q.Push(openEvent("T2"))
	require.Eventually(t, func() bool {
		return len(s.rows(TableEventLog)) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "T2", s.rows(TableEventLog)[0][2])
	d.Stop()
}

func TestStopFlushesRemainingEvents(t *testing.T) {
	q := queue.New()
	s := newFakeSink()
	// Long interval: the ticker will not fire before Stop.
	d := New(q, s, Config{Interval: time.Hour})

	d.Start(context.Background())
	q.Push(sentEvent("T1"))
	q.Push(clickEvent("T1", "https://acme.test/"))
	d.Stop()

	assert.Len(t, s.rows(TableSentLog), 1)
	assert.Len(t, s.rows(TableEventLog), 2)
	assert.Equal(t, 0, q.Len())
}

func TestStopIsIdempotent(t *testing.T) {
	d := New(queue.New(), newFakeSink(), Config{Interval: time.Hour})
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}
