package stagepage

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/draft"
	"github.com/stagepage/stagepage/pkg/editor"
	"github.com/stagepage/stagepage/pkg/models"
	"github.com/stagepage/stagepage/pkg/store"
	"github.com/stagepage/stagepage/pkg/tracking"
)

// DefaultStatsDays is the window of the stats endpoint when days is not set.
const DefaultStatsDays = 30

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// trackRequest is the body of POST /api/track. A request carrying a link id
// records a click, any other records a page view.
type trackRequest struct {
	Path     string `json:"path"`
	Referrer string `json:"referrer"`
	LinkID   *int64 `json:"linkId"`
}

// errorResponse is the body of every failed request. Section, Op and ID are
// set when a publish failed in the store.
type errorResponse struct {
	Error   string   `json:"error"`
	Section string   `json:"section,omitempty"`
	Op      draft.Op `json:"op,omitempty"`
	ID      int64    `json:"id,omitempty"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"driver":   a.config.Driver,
		"readOnly": a.IsReadOnly(),
		"sessions": a.sessions.Len(),
		"time":     time.Now().Unix(),
	})
}

// handleGetPage serves the published page and counts a view for it.
func (a *App) handleGetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := a.store.LoadPage(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.Method == http.MethodGet && !tracking.IsBot(r.UserAgent()) {
		view := &models.PageView{
			Path:      "/",
			Referrer:  tracking.ParseReferrer(r.Referer(), a.config.SiteHost),
			UserAgent: r.UserAgent(),
		}
		if err := a.store.RecordPageView(ctx, view); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to record page view")
		}
	}

	respondJSON(w, http.StatusOK, p.Published())
}

func (a *App) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ua := r.UserAgent()
	if tracking.IsBot(ua) {
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	ctx := r.Context()
	referrer := tracking.ParseReferrer(req.Referrer, a.config.SiteHost)
	if req.LinkID != nil {
		link, err := a.store.GetLink(ctx, *req.LinkID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if link == nil {
			respondError(w, http.StatusNotFound, "Link not found")
			return
		}
		click := &models.LinkClick{LinkID: link.ID, Referrer: referrer}
		if err := a.store.RecordLinkClick(ctx, click); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]bool{"success": true})
		return
	}

	path := req.Path
	if path == "" {
		path = "/"
	}
	view := &models.PageView{Path: path, Referrer: referrer, UserAgent: ua}
	if err := a.store.RecordPageView(ctx, view); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleGoLink records a click on a link and redirects to its url.
func (a *App) handleGoLink(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["linkId"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid link ID")
		return
	}

	ctx := r.Context()
	link, err := a.store.GetLink(ctx, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if link == nil {
		respondError(w, http.StatusNotFound, "Link not found")
		return
	}

	if !tracking.IsBot(r.UserAgent()) {
		click := &models.LinkClick{
			LinkID:   link.ID,
			Referrer: tracking.ParseReferrer(r.Referer(), a.config.SiteHost),
		}
		if err := a.store.RecordLinkClick(ctx, click); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("link", link.ID).Msg("Failed to record link click")
		}
	}

	http.Redirect(w, r, link.URL, http.StatusFound)
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	days := DefaultStatsDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid days")
			return
		}
		days = n
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	stats, err := a.store.Stats(r.Context(), since, 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// respondFailure maps err to a status code and writes it.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var perr *draft.PersistenceError
	if errors.As(err, &perr) {
		body.Section = perr.Section
		body.Op = perr.Op
		body.ID = perr.ID
	}
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	}
	respondJSON(w, status, body)
}

func statusFor(err error) int {
	var perr *draft.PersistenceError
	switch {
	case errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, draft.ErrSaveInProgress):
		return http.StatusConflict
	case errors.Is(err, editor.ErrTooManySessions):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, store.ErrUnknownField),
		errors.Is(err, store.ErrNotFound) && !errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.As(err, &perr):
		return http.StatusBadGateway
	case isDraftError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// isDraftError reports whether err is a rejected command.
func isDraftError(err error) bool {
	for _, target := range []error{
		draft.ErrUninitialized,
		draft.ErrUnknownSection,
		draft.ErrWrongKind,
		draft.ErrRecordNotFound,
		draft.ErrDuplicateID,
		draft.ErrImmutableField,
		draft.ErrBadPermutation,
		draft.ErrUnknownCommand,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
