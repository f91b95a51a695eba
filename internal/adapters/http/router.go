package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opencaretools/abctrack/internal/application"
	"github.com/opencaretools/abctrack/internal/domain"
)

type Handler struct {
	service *application.TrackerService
	logger  *log.Logger
}

func NewRouter(service *application.TrackerService, logger *log.Logger) http.Handler {
	h := &Handler{service: service, logger: logger}
	r := chi.NewRouter()

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		api.Get("/children", h.handleListChildren)
		api.Post("/children", h.handleCreateChild)
		api.Delete("/children/{id}", h.handleDeleteChild)

		api.Get("/catalogs/{type}", h.handleListCatalog)
		api.Post("/catalogs/{type}", h.handleCreateCatalogItem)
		api.Delete("/catalogs/{type}/{id}", h.handleDeleteCatalogItem)

		api.Get("/incidents", h.handleListIncidents)
		api.Post("/incidents", h.handleCreateIncident)
		api.Get("/incidents/{id}", h.handleGetIncident)
		api.Patch("/incidents/{id}", h.handleUpdateIncident)
		api.Delete("/incidents/{id}", h.handleDeleteIncident)

		api.Get("/reports/summary", h.handleReportSummary)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleListChildren(w http.ResponseWriter, r *http.Request) {
	children, err := h.service.ListChildren(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

type createChildRequest struct {
	Name      string     `json:"name"`
	DOB       *time.Time `json:"dob"`
	AvatarURL string     `json:"avatarUrl"`
}

func (h *Handler) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	var req createChildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	child, err := h.service.CreateChild(r.Context(), domain.Child{Name: req.Name, DOB: req.DOB, AvatarURL: req.AvatarURL})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

func (h *Handler) handleDeleteChild(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteChild(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseCatalogKind(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.service.ListCatalog(r.Context(), kind)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type createCatalogItemRequest struct {
	Label string `json:"label"`
}

func (h *Handler) handleCreateCatalogItem(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseCatalogKind(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req createCatalogItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	item, err := h.service.CreateCatalogItem(r.Context(), kind, domain.CatalogItem{Label: req.Label})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) handleDeleteCatalogItem(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseCatalogKind(chi.URLParam(r, "type"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.service.DeleteCatalogItem(r.Context(), kind, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	filter, err := incidentFilterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	incidents, err := h.service.ListIncidents(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incidents)
}

type createIncidentRequest struct {
	ChildID            string                    `json:"childId"`
	Timestamp          *time.Time                `json:"timestamp"`
	BehaviorText       string                    `json:"behaviorText"`
	BehaviorIDs        []string                  `json:"behaviorIds"`
	AntecedentIDs      []string                  `json:"antecedentIds"`
	ConsequenceIDs     []string                  `json:"consequenceIds"`
	InterventionIDs    []string                  `json:"interventionIds"`
	Intensity          int                       `json:"intensity"`
	DurationSec        *int                      `json:"durationSec"`
	LatencySec         *int                      `json:"latencySec"`
	LocationID         *string                   `json:"locationId"`
	LocationText       string                    `json:"locationText"`
	FunctionHypothesis domain.FunctionHypothesis `json:"functionHypothesis"`
	Notes              string                    `json:"notes"`
	Tags               []string                  `json:"tags"`
	SettingEvents      *domain.SettingEvents     `json:"settingEvents"`
	Attachments        []domain.Attachment       `json:"attachments"`
}

func (h *Handler) handleCreateIncident(w http.ResponseWriter, r *http.Request) {
	var req createIncidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	incident := domain.Incident{
		ChildID:            req.ChildID,
		BehaviorText:       req.BehaviorText,
		BehaviorIDs:        req.BehaviorIDs,
		AntecedentIDs:      req.AntecedentIDs,
		ConsequenceIDs:     req.ConsequenceIDs,
		InterventionIDs:    req.InterventionIDs,
		Intensity:          req.Intensity,
		DurationSec:        req.DurationSec,
		LatencySec:         req.LatencySec,
		LocationID:         req.LocationID,
		LocationText:       req.LocationText,
		FunctionHypothesis: req.FunctionHypothesis,
		Notes:              req.Notes,
		Tags:               req.Tags,
		SettingEvents:      req.SettingEvents,
		Attachments:        req.Attachments,
	}
	if req.Timestamp != nil {
		incident.Timestamp = *req.Timestamp
	}
	created, err := h.service.CreateIncident(r.Context(), incident)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := h.service.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (h *Handler) handleUpdateIncident(w http.ResponseWriter, r *http.Request) {
	var patch domain.IncidentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	updated, err := h.service.UpdateIncident(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDeleteIncident(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteIncident(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := incidentFilterFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	summary, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func incidentFilterFromQuery(r *http.Request) (domain.IncidentFilter, error) {
	var filter domain.IncidentFilter
	if v := r.URL.Query().Get("childId"); v != "" {
		filter.ChildID = &v
	}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.IncidentFilter{}, errors.New("from must be an RFC 3339 timestamp")
		}
		filter.From = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.IncidentFilter{}, errors.New("to must be an RFC 3339 timestamp")
		}
		filter.To = &t
	}
	return filter, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCatalogKind), errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	default:
		h.logger.Printf("http: internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
