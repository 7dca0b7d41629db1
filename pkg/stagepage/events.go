package stagepage

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stagepage/stagepage/pkg/draft"
)

const (
	eventBuffer  = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second

	// eventState is the kind of the first message of a stream.
	eventState draft.EventKind = "state"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleSessionEvents streams the draft events of a session over a
// websocket. The first message reports the current state. The stream ends
// when the client goes away, the session is closed or the server stops.
func (a *App) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	log := zerolog.Ctx(r.Context()).With().Str("session", sess.ID()).Logger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to upgrade")
		return
	}
	defer conn.Close()

	// Slow clients lose events rather than stalling the draft.
	events := make(chan draft.Event, eventBuffer)
	cancel := sess.Draft().Subscribe(func(ev draft.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	d := sess.Draft()
	current := draft.Event{Kind: eventState, Dirty: d.IsDirty(), Saving: d.IsSaving()}
	if err := writeEvent(conn, current); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case ev := <-events:
			if err := writeEvent(conn, ev); err != nil {
				log.Debug().Err(err).Msg("Event stream closed")
				return
			}
			if ev.Kind == draft.EventReset {
				closeStream(conn, "session closed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-done:
			return
		case <-a.stopping.Done():
			closeStream(conn, "server stopping")
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev draft.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(ev)
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
