package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/nexxia-ai/sqlflow"
	"github.com/nexxia-ai/sqlflow/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, st, err := newPipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			mux := http.NewServeMux()
			mux.HandleFunc("POST /ask", handleAsk(p))
			mux.HandleFunc("GET /databases", handleDatabases(store.NewManager(cfg.DataDir)))
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			slog.Info("listening", "addr", cfg.ListenAddr)
			server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
			return server.ListenAndServe()
		},
	}
}

type askRequest struct {
	Question string `json:"question"`
}

func handleAsk(p *sqlflow.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
			writeError(w, http.StatusBadRequest, "request body must be JSON with a non-empty question field")
			return
		}

		result, err := p.Run(r.Context(), req.Question)
		if err != nil {
			slog.Error("pipeline run failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process question")
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleDatabases(manager *store.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos, err := manager.List(r.Context())
		if err != nil {
			slog.Error("failed to list databases", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list databases")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"active":    manager.ActiveKey(),
			"databases": infos,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
