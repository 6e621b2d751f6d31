package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// DeviceInfo describes the device session for the status endpoint.
type DeviceInfo interface {
	Alive() bool
	Describe() string
}

// StatusServer exposes local health, status and metrics endpoints.
type StatusServer struct {
	Addr       string
	PrinterID  string
	Supervisor *Supervisor
	Dispatcher *Dispatcher
	Device     DeviceInfo
	Metrics    http.Handler
	Logger     *slog.Logger
}

type statusResponse struct {
	PrinterID       string `json:"printerId"`
	Connection      string `json:"connection"`
	DeviceConnected bool   `json:"deviceConnected"`
	Device          string `json:"device,omitempty"`
	QueueDepth      int    `json:"queueDepth"`
	PendingResults  int    `json:"pendingResults"`
}

// Router builds the HTTP router.
func (s *StatusServer) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/status", s.handleStatus)
	if s.Metrics != nil {
		r.Mount("/metrics", s.Metrics)
	}
	return r
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{PrinterID: s.PrinterID}
	if s.Supervisor != nil {
		resp.Connection = describeState(s.Supervisor.State())
		resp.PendingResults = s.Supervisor.Pending()
	}
	if s.Dispatcher != nil {
		resp.QueueDepth = s.Dispatcher.QueueDepth()
	}
	if s.Device != nil {
		resp.DeviceConnected = s.Device.Alive()
		resp.Device = s.Device.Describe()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Run serves until ctx is cancelled.
func (s *StatusServer) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("status server listening", "addr", s.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
