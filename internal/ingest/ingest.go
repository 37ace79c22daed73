// Package ingest builds tracking events from inbound signals, enriches them
// with registry data, and enqueues them for batched delivery.
//
// Enqueue is the only side effect on the request path. Delivery happens in
// the dispatcher, so pixels and redirects are never blocked by a sink
// outage.
package ingest

import (
	"context"
	"net/url"

	"github.com/letinc/beacon/internal/event"
	"github.com/letinc/beacon/internal/metrics"
	"github.com/letinc/beacon/internal/pkg/logger"
	"github.com/letinc/beacon/internal/queue"
	"github.com/letinc/beacon/internal/registry"
)

// UnknownClient is recorded when the originating request carries no usable
// IP address or user agent.
const UnknownClient = "Unknown"

// Service is the ingestion boundary for sent, open, and click signals.
type Service struct {
	queue       *queue.EventQueue
	registry    *registry.Registry
	fallbackURL string
}

// New creates the ingestion service. fallbackURL is where click redirects
// land when the tracked URL is missing or malformed.
func New(q *queue.EventQueue, reg *registry.Registry, fallbackURL string) *Service {
	return &Service{queue: q, registry: reg, fallbackURL: fallbackURL}
}

// FallbackURL returns the configured click fallback destination.
func (s *Service) FallbackURL() string {
	return s.fallbackURL
}

// RecordSent registers the tracking id and enqueues the sent event. The
// body snippet is truncated to the sink column limit. Registration and the
// sent record are one operation: a send that fails validation leaves no
// registry entry and no event.
func (s *Service) RecordSent(ctx context.Context, trackingID, recipientID, recipientName, subject, bodySnippet string) error {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"tracking_id", trackingID},
		{"recipient_id", recipientID},
		{"recipient_name", recipientName},
		{"subject", subject},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if err := s.registry.Register(ctx, trackingID, registry.Entry{
		RecipientID:   recipientID,
		RecipientName: recipientName,
	}); err != nil {
		return err
	}
	metrics.Registrations.Inc()

	s.enqueue(event.TrackingEvent{
		Timestamp:     event.NowTimestamp(),
		Status:        event.StatusSent,
		TrackingID:    trackingID,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		Subject:       subject,
		BodySnippet:   event.TruncateSnippet(bodySnippet),
	})
	return nil
}

// RecordOpen enqueues an open event. An unregistered tracking id resolves
// to empty recipient fields and is still recorded.
func (s *Service) RecordOpen(ctx context.Context, trackingID, clientIP, userAgent string) {
	recipientID, recipientName := s.registry.Resolve(ctx, trackingID)

	s.enqueue(event.TrackingEvent{
		Timestamp:     event.NowTimestamp(),
		Status:        event.StatusOpen,
		TrackingID:    trackingID,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		IPAddress:     orUnknown(clientIP),
		UserAgent:     orUnknown(userAgent),
	})
}

// RecordClick enqueues a click event and returns the URL the caller must
// redirect to: the tracked URL when it is an absolute http(s) URL, the
// fallback otherwise. The event keeps the raw attempted URL either way so
// malformed links stay auditable.
func (s *Service) RecordClick(ctx context.Context, trackingID, linkID, rawURL, clientIP, userAgent string) string {
	recipientID, recipientName := s.registry.Resolve(ctx, trackingID)

	s.enqueue(event.TrackingEvent{
		Timestamp:     event.NowTimestamp(),
		Status:        event.StatusClick,
		TrackingID:    trackingID,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		URL:           rawURL,
		LinkID:        linkID,
		IPAddress:     orUnknown(clientIP),
		UserAgent:     orUnknown(userAgent),
	})

	if validRedirectURL(rawURL) {
		return rawURL
	}
	return s.fallbackURL
}

func (s *Service) enqueue(ev event.TrackingEvent) {
	s.queue.Push(ev)
	metrics.EventsEnqueued.WithLabelValues(string(ev.Status)).Inc()
	metrics.QueueDepth.Set(float64(s.queue.Len()))
	logger.Debug("event enqueued", "status", string(ev.Status), "tracking_id", ev.TrackingID)
}

// validRedirectURL accepts only absolute http/https URLs with a host.
func validRedirectURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownClient
	}
	return s
}
