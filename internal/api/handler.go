// Package api maps HTTP requests onto the ingestion pipeline. Every
// recipient-facing endpoint completes from the recipient's point of view
// even when the delivery pipeline is degraded.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/letinc/beacon/internal/ingest"
	"github.com/letinc/beacon/internal/sink"
)

// 1x1 transparent GIF, the canonical 43-byte payload.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
	0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
	0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
	0x01, 0x00, 0x3b,
}

// Handler serves the tracking and unsubscribe endpoints.
type Handler struct {
	ingest   *ingest.Service
	notifier sink.Notifier
	logoPath string
	unsub    *unsubscribePage
}

// NewHandler wires the HTTP surface. notifier may be nil, in which case
// unsubscribe audit records are skipped (with a warning at startup).
func NewHandler(svc *ingest.Service, notifier sink.Notifier, logoPath string) (*Handler, error) {
	page, err := newUnsubscribePage()
	if err != nil {
		return nil, fmt.Errorf("parse unsubscribe template: %w", err)
	}
	if notifier == nil {
		log.Printf("[API] no audit notifier configured, unsubscribe events will only be logged")
	}
	return &Handler{
		ingest:   svc,
		notifier: notifier,
		logoPath: logoPath,
		unsub:    page,
	}, nil
}

type registerRequest struct {
	TrackingID    string `json:"tracking_id"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	Subject       string `json:"subject"`
	BodySnippet   string `json:"body_snippet"`
}

type registerResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// HandleRegister accepts a send notification from the mailing script.
// Errors are signaled in the body; the status is always 200.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, registerResponse{OK: false, Error: "invalid JSON body"})
		return
	}

	err := h.ingest.RecordSent(r.Context(), req.TrackingID, req.RecipientID, req.RecipientName, req.Subject, req.BodySnippet)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			log.Printf("[API] register rejected: %v", verr)
			writeJSON(w, registerResponse{OK: false, Error: verr.Error()})
			return
		}
		log.Printf("[API] register failed for %s: %v", req.TrackingID, err)
		writeJSON(w, registerResponse{OK: false, Error: "internal error"})
		return
	}

	log.Printf("SENT tracking_id=%s recipient=%s", req.TrackingID, req.RecipientID)
	writeJSON(w, registerResponse{OK: true})
}

// HandleOpen records an open and serves the pixel. The pixel is served no
// matter what: a tracking failure must be invisible to the mail client.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "trackingID")
	h.ingest.RecordOpen(r.Context(), tid, clientIP(r), r.UserAgent())

	log.Printf("OPEN tracking_id=%s ip=%s", tid, clientIP(r))
	servePixel(w)
}

// HandleClick records a click and issues the redirect. Invalid or missing
// URLs land on the fallback origin.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "trackingID")
	linkID := chi.URLParam(r, "linkID")
	rawURL := r.URL.Query().Get("url")

	redirect := h.ingest.RecordClick(r.Context(), tid, linkID, rawURL, clientIP(r), r.UserAgent())

	log.Printf("CLICK tracking_id=%s link_id=%s url=%s -> %s", tid, linkID, rawURL, redirect)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleLogo serves the configured logo image for the unsubscribe page.
func (h *Handler) HandleLogo(w http.ResponseWriter, r *http.Request) {
	if h.logoPath == "" {
		http.NotFound(w, r)
		return
	}
	data, err := os.ReadFile(h.logoPath)
	if err != nil {
		log.Printf("[API] serving logo failed: %v", err)
		http.Error(w, "could not load logo", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// notify posts an audit payload as an independently-failing task. It never
// blocks the caller and never surfaces an error to the response.
func (h *Handler) notify(payload map[string]interface{}) {
	if h.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.notifier.Post(ctx, payload); err != nil {
			log.Printf("[API] audit notify failed (type=%v): %v", payload["type"], err)
		}
	}()
}

func servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, private")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// clientIP returns the remote host without the port. Behind the RealIP
// middleware RemoteAddr is already the forwarded client address.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
