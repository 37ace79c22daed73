package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/osteele/liquid"

	"github.com/letinc/beacon/internal/pkg/logger"
)

// The unsubscribe flow does not touch the event pipeline: the external
// sink owns subscription state. This service only renders the page and
// emits audit records so every view and confirmation leaves a trace.

type unsubscribePage struct {
	tmpl *liquid.Template
}

func newUnsubscribePage() (*unsubscribePage, error) {
	tmpl, err := liquid.NewEngine().ParseTemplate([]byte(unsubscribeHTML))
	if err != nil {
		return nil, err
	}
	return &unsubscribePage{tmpl: tmpl}, nil
}

func (p *unsubscribePage) render(email, trackingID string) ([]byte, error) {
	return p.tmpl.Render(liquid.Bindings{
		"email":       email,
		"tracking_id": trackingID,
	})
}

// HandleUnsubscribePage renders the unsubscribe confirmation page.
func (h *Handler) HandleUnsubscribePage(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "trackingID")
	email := r.URL.Query().Get("email")
	if email == "" {
		logger.Warn("unsubscribe page without email", "tracking_id", tid)
		http.Error(w, "missing 'email' parameter", http.StatusBadRequest)
		return
	}

	logger.Info("unsubscribe page visited",
		"tracking_id", tid,
		"email", email,
		"ip", clientIP(r),
	)

	h.notify(map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"type":       "unsubscribe_view",
		"trackingId": tid,
		"email":      email,
		"ipAddress":  clientIP(r),
		"userAgent":  r.UserAgent(),
		"requestId":  middleware.GetReqID(r.Context()),
	})

	page, err := h.unsub.render(email, tid)
	if err != nil {
		log.Printf("[API] render unsubscribe page: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

type unsubscribeRequest struct {
	Email      string `json:"email"`
	TrackingID string `json:"tracking_id"`
}

type unsubscribeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// HandleUnsubscribeConfirm records the unsubscribe confirmation. The sink
// endpoint is what actually removes the recipient from the list.
func (h *Handler) HandleUnsubscribeConfirm(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, unsubscribeResponse{Success: false, Message: "invalid JSON body"})
		return
	}
	if req.Email == "" || req.TrackingID == "" {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, unsubscribeResponse{Success: false, Message: "missing required parameters"})
		return
	}

	logger.Info("unsubscribe requested",
		"tracking_id", req.TrackingID,
		"email", req.Email,
		"ip", clientIP(r),
	)

	h.notify(map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"type":       "unsubscribe_confirm",
		"trackingId": req.TrackingID,
		"email":      req.Email,
		"ipAddress":  clientIP(r),
		"userAgent":  r.UserAgent(),
		"requestId":  middleware.GetReqID(r.Context()),
	})

	writeJSON(w, unsubscribeResponse{Success: true})
}

const unsubscribeHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Unsubscribe</title>
    <style>
        body { font-family: 'Helvetica Neue', Arial, sans-serif; background: #ffffff; color: #333; line-height: 1.6; margin: 0; }
        .container { max-width: 600px; margin: 0 auto; padding: 40px 20px; text-align: center; }
        .logo { margin-bottom: 30px; max-width: 200px; }
        h1 { margin-bottom: 20px; font-size: 24px; }
        p { margin-bottom: 25px; color: #666; }
        .email { font-weight: bold; color: #333; }
        .btn { display: inline-block; background: #4a6eb5; color: white; padding: 12px 24px; border-radius: 4px; font-weight: 500; margin: 20px 0; border: none; cursor: pointer; }
        .btn:hover { background: #3a5a95; }
        .success-message { display: none; background: #e8f5e9; border: 1px solid #c8e6c9; padding: 15px; border-radius: 4px; margin-top: 20px; }
        .footer { margin-top: 40px; font-size: 13px; color: #999; }
    </style>
</head>
<body>
    <div class="container">
        <img src="/logo" alt="Logo" class="logo">
        <h1>Unsubscribe</h1>
        <p>Stop receiving emails at the following address:</p>
        <p class="email">{{ email }}</p>

        <div id="unsubscribe-form">
            <p>Click the button below to confirm.</p>
            <button class="btn" id="unsubscribe-btn">Unsubscribe</button>
        </div>

        <div id="success-message" class="success-message">
            <p>You have been unsubscribed.</p>
        </div>

        <div class="footer">
            <p>If you have any questions, please contact support.</p>
        </div>
    </div>

    <script>
        document.getElementById('unsubscribe-btn').addEventListener('click', function() {
            fetch('/api/unsubscribe', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({
                    email: '{{ email }}',
                    tracking_id: '{{ tracking_id }}'
                })
            })
            .then(function(response) { return response.json(); })
            .then(function(data) {
                if (data.success) {
                    document.getElementById('unsubscribe-form').style.display = 'none';
                    document.getElementById('success-message').style.display = 'block';
                } else {
                    alert('Something went wrong: ' + data.message);
                }
            })
            .catch(function() {
                alert('Something went wrong. Please try again later.');
            });
        });
    </script>
</body>
</html>
`
