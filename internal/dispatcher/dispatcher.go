// Package dispatcher runs the background worker that drains the event
// queue on a fixed interval and forwards batches to the sink.
package dispatcher

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/letinc/beacon/internal/event"
	"github.com/letinc/beacon/internal/metrics"
	"github.com/letinc/beacon/internal/queue"
	"github.com/letinc/beacon/internal/sink"
)

// Destination tables. SentLog receives only sent events in the column
// layout of the "emails" worksheet; EventLog receives every event.
const (
	TableSentLog  = "sent-log"
	TableEventLog = "event-log"
)

const (
	defaultInterval    = 60 * time.Second
	defaultMaxDrain    = 500
	defaultSinkTimeout = 5 * time.Second
)

// Config tunes the dispatch loop. Zero values take the defaults above.
type Config struct {
	// Interval between flush cycles.
	Interval time.Duration
	// MaxDrain caps how many events one cycle pulls off the queue.
	MaxDrain int
	// SinkTimeout bounds each per-partition sink call so a hung sink
	// cannot stall the loop.
	SinkTimeout time.Duration
}

// Dispatcher is the sole consumer of the event queue. Delivery is
// best-effort and at-most-once: a batch that fails at the sink is logged
// and dropped, never requeued.
type Dispatcher struct {
	queue       *queue.EventQueue
	sink        sink.Client
	interval    time.Duration
	maxDrain    int
	sinkTimeout time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a dispatcher draining q into sinkClient.
func New(q *queue.EventQueue, sinkClient sink.Client, cfg Config) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MaxDrain <= 0 {
		cfg.MaxDrain = defaultMaxDrain
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	return &Dispatcher{
		queue:       q,
		sink:        sinkClient,
		interval:    cfg.Interval,
		maxDrain:    cfg.MaxDrain,
		sinkTimeout: cfg.SinkTimeout,
		stop:        make(chan struct{}),
	}
}

// Start launches the dispatch loop. The loop exits when ctx is cancelled
// or Stop is called, after a best-effort final flush of whatever is still
// queued.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go d.run(ctx)
	log.Printf("[Dispatcher] started (interval=%s, max_drain=%d)", d.interval, d.maxDrain)
}

// Stop signals the loop to flush and exit, then waits for it.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.finalFlush()
			return
		case <-d.stop:
			d.finalFlush()
			return
		case <-ticker.C:
			d.flushCycle(ctx)
		}
	}
}

// flushCycle runs one Draining→Dispatching pass. A panic anywhere in the
// cycle is contained so the timer keeps firing.
func (d *Dispatcher) flushCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatcher] recovered from panic in flush cycle: %v", r)
		}
	}()

	batch := d.queue.Drain(d.maxDrain)
	metrics.QueueDepth.Set(float64(d.queue.Len()))
	if len(batch) == 0 {
		return
	}

	batchID := uuid.New().String()[:8]
	log.Printf("[Dispatcher] batch %s: drained %d events", batchID, len(batch))

	d.dispatch(ctx, batchID, TableSentLog, SentLogRows(batch))
	d.dispatch(ctx, batchID, TableEventLog, EventLogRows(batch))

	metrics.BatchesDispatched.Inc()
}

// dispatch forwards one partition. A failure here is isolated: it is
// logged and counted, and the rows are dropped.
func (d *Dispatcher) dispatch(ctx context.Context, batchID, table string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
	defer cancel()

	if err := d.sink.Append(callCtx, table, rows); err != nil {
		metrics.SinkErrors.WithLabelValues(table).Inc()
		log.Printf("[Dispatcher] batch %s: append to %s failed, dropping %d rows: %v",
			batchID, table, len(rows), err)
		return
	}

	metrics.RowsAppended.WithLabelValues(table).Add(float64(len(rows)))
	log.Printf("[Dispatcher] batch %s: appended %d rows to %s", batchID, len(rows), table)
}

// finalFlush drains and dispatches everything still queued at shutdown.
// Advisory only: a sink failure here drops the batch like any other cycle.
func (d *Dispatcher) finalFlush() {
	// The server context is already gone at this point.
	ctx := context.Background()

	flushed := 0
	for {
		batch := d.queue.Drain(d.maxDrain)
		if len(batch) == 0 {
			break
		}
		batchID := uuid.New().String()[:8]
		d.dispatch(ctx, batchID, TableSentLog, SentLogRows(batch))
		d.dispatch(ctx, batchID, TableEventLog, EventLogRows(batch))
		flushed += len(batch)
	}
	metrics.QueueDepth.Set(0)

	if flushed > 0 {
		log.Printf("[Dispatcher] final flush: dispatched %d remaining events", flushed)
	}
	log.Printf("[Dispatcher] stopped")
}

// SentLogRows projects the sent events of a batch into the sent-log column
// order: tracking_id, timestamp, recipient_id, recipient_name, subject,
// body_snippet.
func SentLogRows(batch []event.TrackingEvent) [][]string {
	var rows [][]string
	for _, ev := range batch {
		if ev.Status != event.StatusSent {
			continue
		}
		rows = append(rows, []string{
			ev.TrackingID,
			ev.Timestamp,
			ev.RecipientID,
			ev.RecipientName,
			ev.Subject,
			ev.BodySnippet,
		})
	}
	return rows
}

// EventLogRows projects every event of a batch into the event-log column
// order: timestamp, status, tracking_id, recipient_id, recipient_name,
// url, ip_address, user_agent, link_id. Fields an event does not carry
// come out as empty strings.
func EventLogRows(batch []event.TrackingEvent) [][]string {
	rows := make([][]string, 0, len(batch))
	for _, ev := range batch {
		rows = append(rows, []string{
			ev.Timestamp,
			string(ev.Status),
			ev.TrackingID,
			ev.RecipientID,
			ev.RecipientName,
			ev.URL,
			ev.IPAddress,
			ev.UserAgent,
			ev.LinkID,
		})
	}
	return rows
}
