package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/equipwatch/equipwatch/internal/api/handlers"
	"github.com/equipwatch/equipwatch/internal/lifecycle"
	"github.com/equipwatch/equipwatch/internal/observability/metrics"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// NewRouter builds the HTTP API for the model lifecycle service
func NewRouter(manager *lifecycle.Manager, collector *metrics.Collector, metricsPath string, logger *logrus.Logger) *mux.Router {
	h := handlers.NewMLHandler(manager, logger)

	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	if collector != nil && metricsPath != "" {
		r.Handle(metricsPath, collector.Handler()).Methods(http.MethodGet)
	}

	ml := r.PathPrefix("/api/v1/ml").Subrouter()
	ml.HandleFunc("/model-status", h.ModelStatus).Methods(http.MethodGet)
	ml.HandleFunc("/models", h.ListModels).Methods(http.MethodGet)
	ml.HandleFunc("/train", h.Train).Methods(http.MethodPost)
	ml.HandleFunc("/validate", h.Validate).Methods(http.MethodPost)
	ml.HandleFunc("/deploy", h.Deploy).Methods(http.MethodPost)
	ml.HandleFunc("/rollback", h.Rollback).Methods(http.MethodPost)
	ml.HandleFunc("/monitor", h.Monitor).Methods(http.MethodPost)
	ml.HandleFunc("/retrain", h.Retrain).Methods(http.MethodPost)
	ml.HandleFunc("/health-scores", h.HealthScores).Methods(http.MethodPost)

	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     recorder.status,
				"duration":   time.Since(start).String(),
				"request_id": w.Header().Get(RequestIDHeader),
			}).Info("HTTP request")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
