// Package http exposes the sync operations and webhook intake over chi.
// Thin by design: decode, delegate, encode. The engine's behavior lives in
// internal/services.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/HR-AR/Project-Conductor-sub007/internal/models"
	"github.com/HR-AR/Project-Conductor-sub007/internal/repositories"
	"github.com/HR-AR/Project-Conductor-sub007/internal/services"
	"github.com/HR-AR/Project-Conductor-sub007/internal/syncerr"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	sync      *services.SyncService
	conflicts *services.ConflictService
	jwtSecret string
}

func NewHandler(sync *services.SyncService, conflicts *services.ConflictService, jwtSecret string) *Handler {
	return &Handler{sync: sync, conflicts: conflicts, jwtSecret: jwtSecret}
}

// Mount attaches all sync routes to the router. Every route sits behind
// bearer-token auth, the webhook included: the tracker is configured with a
// service token.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api/sync", func(r chi.Router) {
		r.Use(h.requireBearer)
		r.Post("/import/{key}", h.importFromRemote)
		r.Post("/export/{id}", h.exportToRemote)
		r.Post("/bulk/import", h.bulkImport)
		r.Post("/bulk/export", h.bulkExport)
		r.Post("/mappings/{id}/sync", h.syncMapping)
		r.Get("/jobs/{id}", h.getJob)
		r.Post("/jobs/{id}/cancel", h.cancelJob)
		r.Post("/jobs/{id}/retry", h.retryJob)
		r.Post("/conflicts/{id}/resolve", h.resolveConflict)
		r.Post("/conflicts/{id}/resolve-similar", h.resolveSimilar)
		r.Post("/conflicts/{id}/ignore", h.ignoreConflict)
		r.Get("/mappings/{id}/conflicts", h.listConflicts)
	})
	r.With(h.requireBearer).Post("/webhooks/tracker", h.webhook)
}

type syncRequest struct {
	AutoResolve bool                      `json:"autoResolve"`
	Strategy    models.ResolutionStrategy `json:"strategy,omitempty"`
	MaxRetries  int                       `json:"maxRetries,omitempty"`
}

func (r syncRequest) options() services.SyncOptions {
	return services.SyncOptions{
		AutoResolve: r.AutoResolve,
		Strategy:    r.Strategy,
		MaxRetries:  r.MaxRetries,
	}
}

func (h *Handler) importFromRemote(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	decodeOptional(r, &req)

	job, err := h.sync.ImportFromRemote(r.Context(), chi.URLParam(r, "key"), req.options(), actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) exportToRemote(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid document id"))
		return
	}
	var req syncRequest
	decodeOptional(r, &req)

	job, err := h.sync.ExportToRemote(r.Context(), id, req.options(), actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) bulkImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		syncRequest
		Keys []string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, syncerr.Validationf("invalid request body"))
		return
	}

	job, err := h.sync.BulkImport(r.Context(), services.BulkImportRequest{
		Keys:    req.Keys,
		Options: req.options(),
	}, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) bulkExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		syncRequest
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, syncerr.Validationf("invalid request body"))
		return
	}

	job, err := h.sync.BulkExport(r.Context(), services.BulkExportRequest{
		IDs:     req.IDs,
		Options: req.options(),
	}, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) syncMapping(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid mapping id"))
		return
	}
	var req struct {
		Direction models.SyncDirection `json:"direction"`
	}
	decodeOptional(r, &req)
	if req.Direction == "" {
		req.Direction = models.DirectionFromRemote
	}

	job, err := h.sync.SyncMapping(r.Context(), id, req.Direction, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid job id"))
		return
	}
	job, err := h.sync.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid job id"))
		return
	}
	if err := h.sync.CancelJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) retryJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid job id"))
		return
	}
	if err := h.sync.RetryJob(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resolveConflict(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid conflict id"))
		return
	}
	var req struct {
		Strategy models.ResolutionStrategy `json:"strategy"`
		Value    any                       `json:"value,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, syncerr.Validationf("invalid request body"))
		return
	}

	conflict, err := h.conflicts.Resolve(r.Context(), id, req.Strategy, req.Value, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflict)
}

func (h *Handler) resolveSimilar(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid conflict id"))
		return
	}
	var req struct {
		Strategy models.ResolutionStrategy `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, syncerr.Validationf("invalid request body"))
		return
	}

	count, err := h.conflicts.ResolveSimilar(r.Context(), id, req.Strategy, actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"resolved": count})
}

func (h *Handler) ignoreConflict(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid conflict id"))
		return
	}
	if err := h.conflicts.Ignore(r.Context(), id, actorFrom(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listConflicts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, syncerr.Validationf("invalid mapping id"))
		return
	}
	conflicts, err := h.conflicts.ListPending(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	var payload models.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, syncerr.Validationf("invalid webhook payload"))
		return
	}

	job, err := h.sync.HandleWebhook(r.Context(), payload, "webhook")
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		// Unmapped or sync-disabled key: acknowledged, nothing to do.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// decodeOptional tolerates an empty body for endpoints whose request payload
// is entirely optional.
func decodeOptional(r *http.Request, out any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case syncerr.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, repositories.ErrNotFound):
		status = http.StatusNotFound
	case syncerr.IsConflict(err):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
