package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/lintang-b-s/hgpart/pkg/vcycle"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type StatusProvider interface {
	Status() vcycle.Status
}

type envelope map[string]any

// Server exposes prometheus metrics and the progress of the local controller.
type Server struct {
	log     *zap.Logger
	status  StatusProvider
	limiter *rate.Limiter
	srv     *http.Server
}

func NewServer(log *zap.Logger, status StatusProvider) *Server {
	return &Server{
		log:     log,
		status:  status,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.GET("/healthz", s.healthz)
	router.GET("/status", s.statusHandler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	})
	return alice.New(corsHandler.Handler, s.recoverPanic, s.limit, s.logRequest).Then(router)
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("metrics server listening", zap.String("addr", addr))
		serverErr <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return nil
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.status == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "partitioner not started")
		return
	}
	if err := s.writeJSON(w, http.StatusOK, envelope{"data": s.status.Status()}); err != nil {
		s.log.Error("write status", zap.Error(err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data envelope) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(js, '\n'))
	return err
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	if err := s.writeJSON(w, status, envelope{"error": message}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				s.log.Error("panic in handler", zap.Any("panic", err), zap.String("path", r.URL.Path))
				s.errorResponse(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.errorResponse(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)),
		)
	})
}
