package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Micheline922/kairo/internal/auth"
	"github.com/Micheline922/kairo/internal/devotion"
	"github.com/Micheline922/kairo/internal/verses"
)

// unlockHeader carries the journal unlock token
const unlockHeader = "X-Journal-Unlock"

// decodeBody decodes a JSON request body into v, rejecting unknown fields
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	return nil
}

func currentUser(r *http.Request) *auth.User {
	return auth.UserFromContext(r.Context())
}

// handleDailyVerse implements GET /api/v1/verses/daily
func (h *HTTPServer) handleDailyVerse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang := q.Get("lang")

	if random, _ := strconv.ParseBool(q.Get("random")); random {
		writeJSON(w, http.StatusOK, verses.Random(lang))
		return
	}

	date := time.Now()
	if s := q.Get("date"); s != "" {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: date must be YYYY-MM-DD", errBadRequest), http.StatusBadRequest)
			return
		}
		date = d
	}

	writeJSON(w, http.StatusOK, verses.Today(date, lang))
}

// handleListFlows implements GET /api/v1/flows
func (h *HTTPServer) handleListFlows(w http.ResponseWriter, r *http.Request) {
	names := h.flows.Names()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"flows": names,
		"total": len(names),
	})
}

// handleRunFlow implements POST /api/v1/flows/{name}
func (h *HTTPServer) handleRunFlow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err), http.StatusBadRequest)
		return
	}

	out, err := h.flows.Run(r.Context(), name, raw)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleLockStatus implements GET /api/v1/journal/lock
func (h *HTTPServer) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.locks.Status(currentUser(r).ID))
}

// handleLock implements POST /api/v1/journal/lock
func (h *HTTPServer) handleLock(w http.ResponseWriter, r *http.Request) {
	h.locks.Lock(currentUser(r).ID)
	writeJSON(w, http.StatusOK, h.locks.Status(currentUser(r).ID))
}

// handleUnlock implements POST /api/v1/journal/unlock
func (h *HTTPServer) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	user := currentUser(r)
	session, err := h.locks.Unlock(r.Context(), user, req.Password)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}

	status := h.locks.Status(user.ID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":     session.Token,
		"header":    unlockHeader,
		"expiresAt": status.ExpiresAt,
	})
}

// handleAnalyzeJournal implements POST /api/v1/journal/{id}/analyze
func (h *HTTPServer) handleAnalyzeJournal(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.devotion.AnalyzeJournalEntry(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], r.URL.Query().Get("lang"))
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

// handleMarkAnswered implements POST /api/v1/prayers/{id}/answer
func (h *HTTPServer) handleMarkAnswered(w http.ResponseWriter, r *http.Request) {
	prayer, err := h.devotion.MarkAnswered(r.Context(), currentUser(r).ID, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, prayer)
}

// handleFastProgress implements PUT /api/v1/fasts/{id}/progress
func (h *HTTPServer) handleFastProgress(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Progress *int `json:"progress"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Progress == nil {
		h.writeError(w, r, fmt.Errorf("%w: progress is required", errBadRequest), http.StatusBadRequest)
		return
	}

	fast, err := h.devotion.SetFastProgress(r.Context(), currentUser(r).ID, mux.Vars(r)["id"], *req.Progress)
	if err != nil {
		h.writeError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fast)
}

// handlePlanFast implements POST /api/v1/fasts/plan
func (h *HTTPServer) handlePlanFast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		devotion.Fast
		Language string `json:"language"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err, http.StatusBadRequest)
		return
	}

	fast, err := h.devotion.PlanFast(r.Context(), currentUser(r).ID, &req.Fast, req.Language)
	if err != nil {
		h.writeError(w, r, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, fast)
}

// registerCollection adds list, add, get and delete routes for c under path
func registerCollection[T any, P devotion.Record[T]](h *HTTPServer, router *mux.Router, path string, c *devotion.Collection[T, P]) {
	router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		items, err := c.List(r.Context(), currentUser(r).ID)
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"items": items,
			"total": len(items),
		})
	}).Methods(http.MethodGet)

	router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		rec := new(T)
		if err := decodeBody(w, r, rec); err != nil {
			h.writeError(w, r, err, http.StatusBadRequest)
			return
		}
		created, err := c.Add(r.Context(), currentUser(r).ID, rec)
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}).Methods(http.MethodPost)

	router.HandleFunc(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		rec, err := c.Get(r.Context(), currentUser(r).ID, mux.Vars(r)["id"])
		if err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}).Methods(http.MethodGet)

	router.HandleFunc(path+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Delete(r.Context(), currentUser(r).ID, mux.Vars(r)["id"]); err != nil {
			h.writeError(w, r, err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
}
