package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fulvian/devstream/internal/memory"
	"github.com/fulvian/devstream/internal/storage"
	"github.com/fulvian/devstream/pkg/types"
)

// defaultListLimit applies when GET /memories has no limit
const defaultListLimit = 50

type MemoryHandler struct {
	svc *memory.Service
}

func NewMemoryHandler(svc *memory.Service) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

// List handles GET /memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	var contentTypes []types.ContentType
	if v := q.Get("content_type"); v != "" {
		for _, name := range strings.Split(v, ",") {
			ct, err := types.ParseContentType(strings.TrimSpace(name))
			if err != nil {
				writeDomainError(w, err)
				return
			}
			contentTypes = append(contentTypes, ct)
		}
	}

	entries, err := h.svc.List(r.Context(), storage.ListOptions{
		Filters: types.SearchFilters{
			ContentTypes:    contentTypes,
			TaskID:          q.Get("task_id"),
			IncludeArchived: q.Get("include_archived") == "true",
		},
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ListResponse{Memories: make([]Memory, len(entries)), Limit: limit, Offset: offset}
	for i, e := range entries {
		resp.Memories[i] = toMemory(e)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Store handles POST /memories
func (h *MemoryHandler) Store(w http.ResponseWriter, r *http.Request) {
	var req StoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	contentType, err := types.ParseContentType(req.ContentType)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := h.svc.Remember(r.Context(), memory.RememberRequest{
		Content:       req.Content,
		ContentType:   contentType,
		ContentFormat: req.ContentFormat,
		Keywords:      req.Keywords,
		TaskID:        req.TaskID,
		PhaseID:       req.PhaseID,
		PlanID:        req.PlanID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMemory(entry))
}

// Get handles GET /memories/{id}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemory(entry))
}

// Archive handles POST /memories/{id}/archive
func (h *MemoryHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Archive(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "archived": true})
}
