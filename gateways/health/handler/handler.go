package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xilidan/roboscribe/pkg/json"
)

const banner = "RoboScribe Bot is running"

// ReadyFunc reports whether the bot is connected to Discord.
type ReadyFunc func() bool

type Handler struct {
	ready ReadyFunc
	log   *slog.Logger
}

type Status struct {
	Status string `json:"status"`
	Bot    string `json:"bot"`
}

func New(ready ReadyFunc, log *slog.Logger) *Handler {
	if ready == nil {
		ready = func() bool { return false }
	}
	return &Handler{ready: ready, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Home)
	r.Get("/health", h.Health)
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if err := json.WriteText(w, http.StatusOK, banner); err != nil {
		h.log.Error("failed to write response", slog.String("error", err.Error()))
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := Status{Status: "healthy", Bot: "connecting"}
	if h.ready() {
		status.Bot = "online"
	}

	if err := json.WriteJSON(w, http.StatusOK, status); err != nil {
		h.log.Error("failed to write response", slog.String("error", err.Error()))
	}
}
