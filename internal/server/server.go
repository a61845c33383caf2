package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"aeromedia/internal/checkout"
	"aeromedia/internal/config"
	"aeromedia/internal/delivery"
	"aeromedia/internal/logging"
	"aeromedia/internal/metrics"
	"aeromedia/internal/services"
	"aeromedia/internal/store"
)

// Server hosts the storefront and admin API.
type Server struct {
	bind     string
	apiToken string
	logger   *slog.Logger

	store     *store.Store
	delivery  *delivery.Service
	bridge    *checkout.Bridge
	fulfiller *checkout.Fulfiller
	metrics   *metrics.Metrics

	listener net.Listener
	server   *http.Server
}

// New assembles the HTTP server. The handler is ready immediately; call
// Start to begin serving.
func New(cfg *config.Config, st *store.Store, deliverySvc *delivery.Service, bridge *checkout.Bridge, fulfiller *checkout.Fulfiller, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		bind:      strings.TrimSpace(cfg.Paths.APIBind),
		apiToken:  strings.TrimSpace(cfg.Paths.APIToken),
		logger:    logger.With(logging.String(logging.FieldComponent, "api-server")),
		store:     st,
		delivery:  deliverySvc,
		bridge:    bridge,
		fulfiller: fulfiller,
		metrics:   m,
	}
	s.server = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the assembled router. Tests serve it directly.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.annotateRequest)

	r.Get("/api/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckout)
		r.Post("/webhook", s.handleWebhook)
		r.Post("/download", s.handleDownload)
		r.Put("/download/bulk", s.handleBulkDownload)
		r.Post("/track", s.handleTrack)
		r.Get("/media/{itemID}/view", s.handleViewItem)
		r.Get("/package", s.handlePackageContents)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/packages", s.handleListPackages)
			r.Post("/packages", s.handleCreatePackage)
			r.Get("/packages/{packageID}", s.handleGetPackage)
			r.Post("/packages/{packageID}/expire", s.handleExpirePackage)
			r.Post("/packages/{packageID}/items", s.handleAddItem)
			r.Get("/purchases", s.handleListPurchases)
		})
	})
	return r
}

// Start binds the listener and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return errors.New("api bind address not configured")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound listen address, or empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// annotateRequest stamps each request with an id and the caller's network
// identity for download telemetry.
func (s *Server) annotateRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		ctx = services.WithClientInfo(ctx, clientIP(r), r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards admin routes behind the configured bearer token. With
// no token configured the admin surface is disabled entirely.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.apiToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps an error to its HTTP status with the marker prefix
// stripped from the message.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, services.HTTPStatus(err), services.UserMessage(err))
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
