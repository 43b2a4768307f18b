package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/treelog-io/treelog/pkg/engine"
	"github.com/treelog-io/treelog/pkg/mdc"
)

// requestContext assigns each request a unique id and places it, with the
// client address, into the diagnostic context so every record emitted while
// handling the request carries both.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := mdc.Put(r.Context(), "request_id", uuid.NewString())
		ctx = mdc.Put(ctx, "client_ip", r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GreetingHandler serves the demo endpoints, logging through the engine.
type GreetingHandler struct {
	log *engine.Logger
}

func NewGreetingHandler(eng *engine.Engine) *GreetingHandler {
	return &GreetingHandler{log: eng.Logger("greeting.GreetingResource")}
}

func (h *GreetingHandler) HandleHello(w http.ResponseWriter, r *http.Request) {
	h.log.Infof(r.Context(), "request received")

	name := chi.URLParam(r, "name")
	if name == "" {
		name = "world"
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("hello " + name + "\n"))
}

func (h *GreetingHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.log.Debugf(r.Context(), "GET /health")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

type StatusResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	RootLevel string `json:"root_level"`
}

var startTime = time.Now()

// HandleStatus reports process uptime and the engine's root level.
func HandleStatus(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:    "ok",
			Uptime:    time.Since(startTime).String(),
			RootLevel: eng.EffectiveLevel("").String(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
