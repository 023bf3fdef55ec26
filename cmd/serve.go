package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aulemarouille/green-spots-back/internal/cache"
	"github.com/aulemarouille/green-spots-back/internal/spots"
	"github.com/aulemarouille/green-spots-back/internal/staticdata"
	"github.com/aulemarouille/green-spots-back/pkg/datagouv"
)

var servePort int

// spotsAPI is what the HTTP layer needs from the aggregation service.
type spotsAPI interface {
	GetAllSpots(ctx context.Context) spots.Response
	ClearCache()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the eco spots HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client := datagouv.New(datagouv.Options{
			BaseURL:     cfg.DataGouv.BaseURL,
			Timeout:     cfg.DataGouv.Timeout(),
			Departments: cfg.DataGouv.Departments,
			Workers:     cfg.DataGouv.Workers,
			PageSize:    cfg.DataGouv.PageSize,
		})
		defer client.Close()

		svc := spots.NewService(
			client,
			staticdata.NewLoader(cfg.Static.DataDir),
			cache.NewMemory(),
			cfg.Cache.TTL(),
		)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(svc),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter wires the HTTP routes onto a chi router.
func newRouter(svc spotsAPI) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/spots/", func(w http.ResponseWriter, r *http.Request) {
		// Degraded bodies still return 200: absence of data is carried by
		// the error field, never by a broken payload.
		writeJSON(w, http.StatusOK, svc.GetAllSpots(r.Context()))
	})

	r.Post("/spots/refresh", func(w http.ResponseWriter, r *http.Request) {
		svc.ClearCache()
		writeJSON(w, http.StatusOK, map[string]string{"message": "cache cleared"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
