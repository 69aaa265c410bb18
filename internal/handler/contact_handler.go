package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/termsite/backend/internal/model"
	"github.com/termsite/backend/internal/repository"
	"github.com/termsite/backend/internal/security"
	"github.com/termsite/backend/internal/service"
)

const (
	maxNameLength    = 100
	maxEmailLength   = 120
	maxSubjectLength = 200
	maxBodyLength    = 5000

	// sessionCookie carries the challenge-session token.
	sessionCookie = "contact_session"
)

// ContactHandler handles contact form submission, the challenge endpoint,
// and the admin message surface.
type ContactHandler struct {
	contactService service.ContactService
	retention      service.RetentionService
}

// NewContactHandler creates a ContactHandler with the given services.
func NewContactHandler(contactService service.ContactService, retention service.RetentionService) *ContactHandler {
	return &ContactHandler{contactService: contactService, retention: retention}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Submit handles POST /api/contact.
//
// The body is decoded as a flat string map rather than a fixed struct so
// honeypot decoy fields submitted by bots are visible to the pipeline.
// email and message are required; name and subject are optional.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var form map[string]string
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	email := form["email"]
	body := form["message"]
	name := form["name"]
	subject := form["subject"]

	if email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email_required"})
		return
	}
	if body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message_required"})
		return
	}
	if len([]rune(name)) > maxNameLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name_too_long"})
		return
	}
	if len([]rune(email)) > maxEmailLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email_too_long"})
		return
	}
	if len([]rune(subject)) > maxSubjectLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "subject_too_long"})
		return
	}
	if len([]rune(body)) > maxBodyLength {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message_too_long"})
		return
	}

	in := service.SubmitInput{
		Name:      name,
		Email:     email,
		Subject:   subject,
		Body:      body,
		ClientIP:  security.ClientIP(r),
		UserAgent: r.UserAgent(),
		Form:      form,
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		in.SessionToken = cookie.Value
	}

	out, err := h.contactService.Submit(r.Context(), in)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "submit_failed"})
		return
	}

	res := out.Result
	if res.Verdict == security.VerdictBlocked && !res.Reason.Masked() {
		switch res.Reason {
		case security.ReasonRateLimitExceeded:
			if !res.RateInfo.BlockedUntil.IsZero() {
				w.Header().Set("Retry-After", retryAfterSeconds(time.Until(res.RateInfo.BlockedUntil)))
			}
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": string(res.Reason)})
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": string(res.Reason)})
		}
		return
	}

	// Accepted, accepted-as-spam and masked blocks all look identical to
	// the submitter.
	writeJSON(w, http.StatusCreated, map[string]string{"ok": "true"})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Challenge handles POST /api/contact/challenge. It records the instant
// the session passed the human-verification challenge and hands back the
// session cookie. Verifying the challenge answer itself happens upstream.
func (h *ContactHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var token string
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		token = cookie.Value
	}

	token, validatedAt := h.contactService.RecordChallenge(token)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"ok":           "true",
		"validated_at": validatedAt.Format(time.RFC3339),
	})
}

// adminListResponse is the JSON response for GET /api/admin/messages.
type adminListResponse struct {
	Messages []*model.ContactMessage `json:"messages"`
}

// AdminList handles GET /api/admin/messages.
// Supports query params: filter (all/unread/read/spam/ham), limit, offset.
func (h *ContactHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	opts := model.ContactListOptions{
		Filter: r.URL.Query().Get("filter"),
		Limit:  20,
		Offset: 0,
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	messages, err := h.contactService.List(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list_failed"})
		return
	}

	// Return [] not null for empty lists
	if messages == nil {
		messages = []*model.ContactMessage{}
	}
	writeJSON(w, http.StatusOK, adminListResponse{Messages: messages})
}

// AdminMarkRead handles PATCH /api/admin/messages/{id}/read.
func (h *ContactHandler) AdminMarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id_required"})
		return
	}

	if err := h.contactService.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "update_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true"})
}

// AdminPurge handles POST /api/admin/purge. The optional days query param
// overrides the configured retention period.
func (h *ContactHandler) AdminPurge(w http.ResponseWriter, r *http.Request) {
	days := 0
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_days"})
			return
		}
		days = n
	}

	deleted, err := h.retention.PurgeAttempts(r.Context(), days)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "purge_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
