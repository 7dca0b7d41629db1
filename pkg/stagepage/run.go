package stagepage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Router builds the HTTP routes of the service.
func (a *App) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(a.requestLogger)

	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	// Public page routes are embeddable from other origins.
	public := newCORS()
	router.Handle("/api/health", public.Handler(http.HandlerFunc(a.handleHealth))).Methods("GET", "OPTIONS")
	router.Handle("/api/page", public.Handler(http.HandlerFunc(a.handleGetPage))).Methods("GET", "OPTIONS")
	router.Handle("/api/track", public.Handler(http.HandlerFunc(a.handleTrack))).Methods("POST", "OPTIONS")
	router.HandleFunc("/go/{linkId}", a.handleGoLink).Methods("GET")

	router.HandleFunc("/robots.txt", a.handleRobots).Methods("GET", "HEAD")
	router.HandleFunc("/sitemap.xml", a.handleSitemap).Methods("GET", "HEAD")
	router.HandleFunc("/manifest.json", a.handleManifest).Methods("GET", "HEAD")

	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.HandleFunc("/stats", a.handleStats).Methods("GET")
	admin.HandleFunc("/mode", a.handleGetMode).Methods("GET")
	admin.HandleFunc("/mode", a.handleSetMode).Methods("POST")

	admin.HandleFunc("/sessions", a.handleOpenSession).Methods("POST")
	admin.HandleFunc("/sessions/{id}", a.handleGetSession).Methods("GET")
	admin.HandleFunc("/sessions/{id}", a.handleCloseSession).Methods("DELETE")
	admin.HandleFunc("/sessions/{id}/commands", a.handleApplyCommand).Methods("POST")
	admin.HandleFunc("/sessions/{id}/publish", a.handlePublish).Methods("POST")
	admin.HandleFunc("/sessions/{id}/undo", a.handleUndo).Methods("POST")
	admin.HandleFunc("/sessions/{id}/events", a.handleSessionEvents).Methods("GET")

	return router
}

// Run serves HTTP until ctx is done, sweeping idle editor sessions in the
// background.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	server := &http.Server{
		Addr:              a.config.Addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(a.stop)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info().Str("addr", server.Addr).Bool("readOnly", a.IsReadOnly()).Msg("Starting stagepage server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		every := a.config.SweepEvery
		if every <= 0 {
			every = time.Minute
		}
		return a.sessions.Run(gctx, every)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
