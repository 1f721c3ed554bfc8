// Package web serves the operator pages and the JSON API of the payment
// batch auditor.
package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/potaudit/potaudit/internal/auth"
	"github.com/potaudit/potaudit/internal/batch"
	"github.com/potaudit/potaudit/internal/platform/timeouts"
	"github.com/potaudit/potaudit/internal/report"
	"github.com/potaudit/potaudit/internal/storage"
	"github.com/potaudit/potaudit/internal/web/routepath"
)

// Store is the read surface the pages and the API are built on.
type Store interface {
	storage.BatchStore
	storage.RecordStore
	storage.FindingStore
	storage.MetricsStore
}

// Dependencies carries the services behind the web surface.
type Dependencies struct {
	Store     Store
	Sessions  storage.SessionStore
	Auth      *auth.Service
	Grants    *auth.Grants
	Registrar *batch.Registrar
	Reports   *report.Service
}

// Server hosts the HTML pages, report downloads and the JSON API.
type Server struct {
	addr       string
	store      Store
	sessions   storage.SessionStore
	auth       *auth.Service
	grants     *auth.Grants
	registrar  *batch.Registrar
	reports    *report.Service
	clock      func() time.Time
	httpServer *http.Server
}

// NewServer builds the web server and its route table.
func NewServer(addr string, deps Dependencies) (*Server, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("http address is required")
	}
	switch {
	case deps.Store == nil:
		return nil, errors.New("store is required")
	case deps.Sessions == nil:
		return nil, errors.New("session store is required")
	case deps.Auth == nil:
		return nil, errors.New("auth service is required")
	case deps.Grants == nil:
		return nil, errors.New("grant signer is required")
	case deps.Registrar == nil:
		return nil, errors.New("batch registrar is required")
	case deps.Reports == nil:
		return nil, errors.New("report service is required")
	}

	s := &Server{
		addr:      addr,
		store:     deps.Store,
		sessions:  deps.Sessions,
		auth:      deps.Auth,
		grants:    deps.Grants,
		registrar: deps.Registrar,
		reports:   deps.Reports,
		clock:     time.Now,
	}
	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

// Handler returns the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes() (http.Handler, error) {
	mux := http.NewServeMux()

	staticFS, err := fs.Sub(assetsFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle(
		routepath.StaticPrefix,
		withStaticMime(http.StripPrefix(routepath.StaticPrefix, http.FileServer(http.FS(staticFS)))),
	)

	mux.HandleFunc("GET "+routepath.Health, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, routepath.Batches, http.StatusFound)
	})

	mux.HandleFunc("GET "+routepath.Login, s.handleLoginPage)
	mux.HandleFunc("POST "+routepath.Login, s.handleLoginSubmit)
	mux.HandleFunc("POST "+routepath.Logout, s.handleLogout)

	mux.Handle("GET "+routepath.Batches, s.requirePage(s.handleBatches))
	mux.Handle("POST "+routepath.BatchUpload, s.requirePage(s.handleBatchUpload))
	mux.Handle("GET "+routepath.BatchPattern, s.requirePage(s.handleBatchDetail))
	mux.HandleFunc("GET "+routepath.BatchReportPattern, s.handleReportDownload)

	mux.Handle("GET "+routepath.APIBatches, s.requireAPI(s.handleAPIBatches))
	mux.Handle("GET "+routepath.APIBatchPattern, s.requireAPI(s.handleAPIBatch))
	mux.Handle("GET "+routepath.APIBatchMetricsPattern, s.requireAPI(s.handleAPIBatchMetrics))
	mux.Handle("GET "+routepath.APIBatchFindingsPattern, s.requireAPI(s.handleAPIBatchFindings))
	mux.Handle("POST "+routepath.APIBatchReprocessPattern, s.requireAPI(s.handleAPIBatchReprocess))
	mux.Handle("POST "+routepath.APIBatchReportLinkPattern, s.requireAPI(s.handleAPIReportLink))

	return s.withLanguage(mux), nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return errors.New("web server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("web: listening on %s", s.addr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// StartSessionCleanup deletes expired login sessions on an interval until
// the context ends.
func (s *Server) StartSessionCleanup(ctx context.Context, interval time.Duration) {
	if s == nil || s.sessions == nil || interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.sessions.DeleteExpiredSessions(ctx, s.clock().UTC()); err != nil {
					log.Printf("web: session cleanup: %v", err)
				}
			}
		}
	}()
}

func withStaticMime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch path := strings.ToLower(r.URL.Path); {
		case strings.HasSuffix(path, ".css"):
			w.Header().Set("Content-Type", "text/css")
		case strings.HasSuffix(path, ".js"):
			w.Header().Set("Content-Type", "application/javascript")
		case strings.HasSuffix(path, ".svg"):
			w.Header().Set("Content-Type", "image/svg+xml")
		}
		next.ServeHTTP(w, r)
	})
}
