package stagepage

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/draft"
	"github.com/stagepage/stagepage/pkg/editor"
)

// SessionView is the state of an editor session returned by the admin API.
type SessionView struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Dirty  bool   `json:"dirty"`
	Saving bool   `json:"saving"`
	// Changed lists the sections that differ from the last saved state.
	Changed []string       `json:"changed"`
	Data    draft.Document `json:"data"`
}

// CommandResponse is returned after a command was applied.
type CommandResponse struct {
	Result  draft.ApplyResult `json:"result"`
	Session SessionView       `json:"session"`
}

// PublishResponse is returned after a successful publish.
type PublishResponse struct {
	Result  *draft.Result `json:"result"`
	Session SessionView   `json:"session"`
}

// ModeRequest toggles the read-only mode.
type ModeRequest struct {
	ReadOnly bool `json:"readOnly"`
}

func newSessionView(sess *editor.Session) SessionView {
	d := sess.Draft()
	view := SessionView{
		ID:      sess.ID(),
		State:   d.State().String(),
		Dirty:   d.IsDirty(),
		Saving:  d.IsSaving(),
		Changed: []string{},
		Data:    d.View(),
	}
	for _, sec := range d.Schema().Sections {
		if d.HasChanges(sec.Name) {
			view.Changed = append(view.Changed, sec.Name)
		}
	}
	return view
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*editor.Session, bool) {
	sess, err := a.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		respondFailure(w, r, err)
		return nil, false
	}
	return sess, true
}

func (a *App) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.sessions.Open(r.Context())
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newSessionView(sess))
}

func (a *App) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

func (a *App) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Close(mux.Vars(r)["id"]); err != nil {
		respondFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleApplyCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	cmd, err := draft.DecodeCommand(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := sess.Apply(cmd)
	if err != nil {
		// Every rejection other than a running save is a bad command.
		if errors.Is(err, draft.ErrSaveInProgress) {
			respondFailure(w, r, err)
		} else {
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, CommandResponse{Result: res, Session: newSessionView(sess)})
}

func (a *App) handlePublish(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}

	res, err := sess.Save(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("session", sess.ID()).Msg("Publish failed")
		respondFailure(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("session", sess.ID()).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("deleted", res.Deleted).
		Int("reordered", res.Reordered).
		Msg("Draft published")
	respondJSON(w, http.StatusOK, PublishResponse{Result: res, Session: newSessionView(sess)})
}

func (a *App) handleUndo(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := sess.Undo(); err != nil {
		respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSessionView(sess))
}

func (a *App) handleGetMode(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ModeRequest{ReadOnly: a.IsReadOnly()})
}

func (a *App) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	a.SetReadOnly(req.ReadOnly)
	respondJSON(w, http.StatusOK, ModeRequest{ReadOnly: a.IsReadOnly()})
}
