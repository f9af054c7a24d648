// Package httpapi exposes the insights operations over JSON HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/winqerweb-code/winqerapp-insights/internal/apisrv/insights"
	"github.com/winqerweb-code/winqerapp-insights/internal/calendar"
	clientid "github.com/winqerweb-code/winqerapp-insights/internal/middleware"
	"github.com/winqerweb-code/winqerapp-insights/internal/ratelimit"
	"github.com/winqerweb-code/winqerapp-insights/internal/reconcile"
)

// Config is the configuration for the http server
type Config struct {
	Port           string           `mapstructure:"port"`
	Address        string           `mapstructure:"address"`
	AllowedOrigins []string         `mapstructure:"allowed_origins"`
	RateLimit      ratelimit.Config `mapstructure:"rate_limit"`
}

// Server is the http server
type Server struct {
	hs   *http.Server
	c    *Config
	done chan struct{}
}

// New creates a new server
func New(config *Config) *Server {
	return &Server{
		c:    config,
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the http server exits
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) router(srv *insights.Server, cal *calendar.Resolver) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.c.AllowedOrigins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	h := &handlers{srv: srv, cal: cal}
	r.Route("/api/insights/{shopID}", func(r chi.Router) {
		r.Use(clientid.ClientIdentifier)
		r.Use(ratelimit.Middleware(s.c.RateLimit))
		r.Get("/metrics", h.getMetrics)
		r.Get("/chart", h.getChartData)
	})

	return r
}

// Start starts the server
func (s *Server) Start(ctx context.Context, srv *insights.Server, cal *calendar.Resolver) error {
	ctx, cancel := context.WithCancel(ctx)
	hsDone := make(chan struct{})

	go func() {
		<-hsDone
		close(s.done)
	}()

	listenerAddr := fmt.Sprintf("%s:%s", s.c.Address, s.c.Port)
	s.hs = &http.Server{
		Addr:    listenerAddr,
		Handler: s.router(srv, cal),
	}

	go func() {
		slog.Default().InfoContext(ctx, fmt.Sprintf("winqerapp-insights new listener on: http://%v", listenerAddr))
		err := s.hs.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			slog.Default().InfoContext(ctx, "http server returned")
		} else if err != nil {
			slog.Default().ErrorContext(ctx, "http server exited with an error",
				slog.String("err", err.Error()))
		}
		cancel()
		close(hsDone)
	}()

	return nil
}

// Stop shuts the http server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}

type handlers struct {
	srv *insights.Server
	cal *calendar.Resolver
}

func (h *handlers) getMetrics(w http.ResponseWriter, r *http.Request) {
	shopID, rng, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	summary, err := h.srv.GetMetrics(r.Context(), shopID, rng)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, summary)
}

func (h *handlers) getChartData(w http.ResponseWriter, r *http.Request) {
	shopID, rng, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	data, err := h.srv.GetChartData(r.Context(), shopID, rng)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, data)
}

// parseRequest validates the shop id path param and the from/to query params.
func (h *handlers) parseRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, calendar.Range, bool) {
	idStr := chi.URLParam(r, "shopID")
	if !govalidator.IsUUID(idStr) {
		writeError(w, http.StatusBadRequest, "shop id must be a uuid")
		return uuid.Nil, calendar.Range{}, false
	}
	shopID, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "shop id must be a uuid")
		return uuid.Nil, calendar.Range{}, false
	}

	from, err := calendar.ParseDay(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be a YYYY-MM-DD date")
		return uuid.Nil, calendar.Range{}, false
	}
	to, err := calendar.ParseDay(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be a YYYY-MM-DD date")
		return uuid.Nil, calendar.Range{}, false
	}
	rng := calendar.Range{From: from, To: to}
	if _, err := h.cal.ExpandRange(rng); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return uuid.Nil, calendar.Range{}, false
	}

	return shopID, rng, true
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var mc *reconcile.MissingCredentialError
	switch {
	case errors.Is(err, insights.ErrShopNotFound):
		writeError(w, http.StatusNotFound, "shop not found")
	case errors.As(err, &mc):
		writeError(w, http.StatusBadGateway, mc.Error())
	default:
		slog.Default().ErrorContext(r.Context(), "insights request failed",
			slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg}})
}
