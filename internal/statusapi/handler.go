package statusapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/service"
	"github.com/agrobook/agrobook/internal/utils"
)

type Handler struct {
	syncer service.Syncer

	logger *logger.Logger
}

func NewHandler(syncer service.Syncer, logger *logger.Logger) *Handler {
	logger.Info().Msg("status handler created")
	return &Handler{
		syncer: syncer,
		logger: logger,
	}
}

// Init builds the status router.
func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/status", h.getSyncStatus)
	router.Get("/healthz", h.healthz)

	return router
}

func (h *Handler) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.syncer.Status(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("error getting sync status")
		http.Error(w, "error getting sync status", http.StatusInternalServerError)
		return
	}

	if _, err := utils.WriteJSON(w, status, http.StatusOK); err != nil {
		h.logger.Error().Err(err).Msg("error writing sync status")
	}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
