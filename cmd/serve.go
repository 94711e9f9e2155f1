package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ripefield/quality-cli/internal/model"
	"github.com/ripefield/quality-cli/internal/store"
	"github.com/ripefield/quality-cli/internal/triage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction and exception-queue HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))
		r.Use(rateLimit(cfg.Server.RequestsPerSec, cfg.Server.Burst))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/predict", func(w http.ResponseWriter, req *http.Request) {
			var in model.PredictionInput
			if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if in.Category == "" {
				writeError(w, http.StatusBadRequest, "category is required")
				return
			}

			res, err := e.Router.Predict(req.Context(), in)
			if err != nil {
				zap.L().Error("predict failed",
					zap.String("category", string(in.Category)),
					zap.Error(err),
				)
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, res)
		})

		r.Get("/exceptions", listExceptionsHandler(e.Queue))

		r.Post("/exceptions/{id}/assign", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Reviewer string `json:"reviewer"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Reviewer == "" {
				writeError(w, http.StatusBadRequest, "reviewer is required")
				return
			}
			id := chi.URLParam(req, "id")
			if err := e.Queue.Assign(req.Context(), id, body.Reviewer); err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "in_review"})
		})

		r.Post("/exceptions/{id}/resolve", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Reviewer string `json:"reviewer"`
				Status   string `json:"status"`
				Notes    string `json:"notes"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Reviewer == "" {
				writeError(w, http.StatusBadRequest, "reviewer is required")
				return
			}
			id := chi.URLParam(req, "id")
			status := model.ExceptionStatus(body.Status)
			if err := e.Queue.Resolve(req.Context(), id, status, body.Reviewer, body.Notes); err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": body.Status})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// listExceptionsHandler serves the filtered queue listing. Filters mirror
// the queue list command: status, severity, type, subject, limit.
func listExceptionsHandler(q *triage.Queue) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter := store.ExceptionFilter{
			Status:   model.ExceptionStatus(req.URL.Query().Get("status")),
			Severity: model.Severity(req.URL.Query().Get("severity")),
			Type:     model.ExceptionType(req.URL.Query().Get("type")),
			Subject:  req.URL.Query().Get("subject"),
			Limit:    50,
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			filter.Limit = n
		}

		recs, err := q.List(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":      len(recs),
			"exceptions": recs,
		})
	}
}

// rateLimit applies a shared token bucket across all requests.
func rateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
