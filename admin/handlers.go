package admin

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/maxpert/stride/indexer"
	"github.com/maxpert/stride/notify"
)

// AdminHandlers exposes registered indexers over HTTP for operators:
// status, zombie cleanup, rollback, reset, and an event stream.
type AdminHandlers struct {
	registry *indexer.Registry
	hub      *notify.Hub
}

// NewAdminHandlers creates a new AdminHandlers instance. A nil hub is
// replaced with a private one so the events endpoint always works.
func NewAdminHandlers(registry *indexer.Registry, hub *notify.Hub) *AdminHandlers {
	if hub == nil {
		hub = notify.NewHub()
	}
	return &AdminHandlers{registry: registry, hub: hub}
}

func writeJSONResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": message}); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// resolve looks up the indexer named in the URL, writing a 404 when absent.
func (h *AdminHandlers) resolve(w http.ResponseWriter, r *http.Request) (indexer.Handle, bool) {
	name := chi.URLParam(r, "name")
	handle, ok := h.registry.Get(name)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "indexer '"+name+"' not found")
		return nil, false
	}
	return handle, true
}

// handleListIndexers returns the status of every registered indexer
func (h *AdminHandlers) handleListIndexers(w http.ResponseWriter, r *http.Request) {
	statuses := make([]indexer.Status, 0)
	for _, name := range h.registry.Names() {
		handle, ok := h.registry.Get(name)
		if !ok {
			continue
		}
		st, err := handle.Status(r.Context())
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, err.Error())
			return
		}
		statuses = append(statuses, st)
	}
	writeJSONResponse(w, statuses)
}

// handleIndexerStatus returns one indexer's status
func (h *AdminHandlers) handleIndexerStatus(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	st, err := handle.Status(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONResponse(w, st)
}

// handleCleanup runs a zombie scan for one indexer
func (h *AdminHandlers) handleCleanup(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := handle.Cleanup(r.Context()); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSONResponse(w, "ok")
}

type rollbackRequest struct {
	// Target is the rollback target in the cursor's canonical encoding.
	Target json.RawMessage `json:"target"`
}

// handleRollback rolls one indexer back to the posted target
func (h *AdminHandlers) handleRollback(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req rollbackRequest
	if err := json.Unmarshal(body, &req); err != nil || len(req.Target) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "body must be {\"target\": <encoded cursor>}")
		return
	}

	if err := handle.RollbackRaw(r.Context(), string(req.Target)); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("indexer", handle.Name()).RawJSON("target", req.Target).Msg("Rollback requested via admin API")
	h.publish(r, handle.Name(), notify.KindRollback)
	writeJSONResponse(w, "ok")
}

// handleReset wipes one indexer's cursor and coordinator state
func (h *AdminHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.resolve(w, r)
	if !ok {
		return
	}
	if err := handle.Reset(r.Context()); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info().Str("indexer", handle.Name()).Msg("Reset requested via admin API")
	h.publish(r, handle.Name(), notify.KindReset)
	writeJSONResponse(w, "ok")
}

// publish emits an event carrying the indexer's post-operation epoch.
func (h *AdminHandlers) publish(r *http.Request, name string, kind notify.Kind) {
	handle, ok := h.registry.Get(name)
	if !ok {
		return
	}
	st, err := handle.Status(r.Context())
	if err != nil {
		log.Warn().Err(err).Str("indexer", name).Msg("Failed to read status for event")
		return
	}
	h.hub.Publish(notify.Event{Indexer: name, Kind: kind, Epoch: st.Epoch})
}
