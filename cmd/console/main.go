package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jogardn/order-console/internal/api"
	"github.com/jogardn/order-console/internal/circuitbreaker"
	"github.com/jogardn/order-console/internal/config"
	"github.com/jogardn/order-console/internal/events"
	"github.com/jogardn/order-console/internal/middleware"
	"github.com/jogardn/order-console/internal/web"
	"github.com/jogardn/order-console/internal/websocket"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := cfg.NewLogger()

	client := api.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	if cfg.BreakerEnabled {
		client.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
			Name:        "orders-api",
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
			MaxRequests: cfg.BreakerMaxRequests,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				logger.WithFields(logrus.Fields{
					"circuit_breaker": name,
					"from":            from.String(),
					"to":              to.String(),
				}).Warn("Orders API circuit breaker changed state")
			},
		}, logger))
		logger.Info("Circuit breaker enabled for orders API")
	}

	hub := websocket.NewHub(client, logger)

	if cfg.KafkaBrokers != "" {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.WithError(err).Warn("Kafka unavailable, form actions will not be journaled")
		} else {
			defer producer.Close()
			hub.SetPublisher(producer)
			logger.WithField("topic", cfg.KafkaTopic).Info("Journaling form actions to Kafka")
		}
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go hub.Run(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/health/all", allServicesHealthCheck(client, hub)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/circuit-breaker/reset", resetCircuitBreaker(client, logger)).Methods("POST", "OPTIONS")
	router.HandleFunc("/ws", hub.HandleWebSocket)
	router.PathPrefix("/").Handler(web.Handler())

	router.Use(middleware.CORS())
	router.Use(middleware.Logging(logger))

	srv := &http.Server{
		Addr:        ":" + cfg.ConsolePort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":    cfg.ConsolePort,
			"api_url": client.BaseURL(),
		}).Info("Starting order console")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "console",
	})
}

type pinger interface {
	Ping(ctx context.Context) error
	CircuitBreaker() *circuitbreaker.CircuitBreaker
}

type sessionCounter interface {
	GetSessionCount() int
}

func allServicesHealthCheck(client pinger, sessions sessionCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthStatus := map[string]interface{}{
			"console": map[string]interface{}{
				"status":   "healthy",
				"service":  "console",
				"sessions": sessions.GetSessionCount(),
			},
		}

		start := time.Now()
		err := client.Ping(r.Context())
		upstream := map[string]interface{}{
			"service":       "orders_api",
			"status":        "healthy",
			"response_time": time.Since(start).Milliseconds(),
			"last_check":    time.Now().Format(time.RFC3339),
		}
		if err != nil {
			upstream["status"] = "unhealthy"
			upstream["error"] = err.Error()
		}
		if cb := client.CircuitBreaker(); cb != nil {
			upstream["circuit_breaker"] = cb.Metrics()
		}
		healthStatus["orders_api"] = upstream

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthStatus)
	}
}

func resetCircuitBreaker(client pinger, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		cb := client.CircuitBreaker()
		if cb == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"message": "Circuit breaker is not enabled",
			})
			return
		}

		before := cb.State()
		cb.Reset()
		logger.WithFields(logrus.Fields{
			"circuit_breaker": cb.Metrics().Name,
			"previous_state":  before.String(),
		}).Info("Circuit breaker reset")

		json.NewEncoder(w).Encode(cb.Metrics())
	}
}
