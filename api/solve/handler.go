// Package solve exposes the optimizer and the solve journal over HTTP.
package solve

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/pvopt/core/dto"
	"github.com/kilianp07/pvopt/core/events"
	"github.com/kilianp07/pvopt/core/journal"
	"github.com/kilianp07/pvopt/core/logger"
	"github.com/kilianp07/pvopt/core/model"
)

const maxBody = 8 << 20

// Solver runs one task under the service admission limits.
type Solver interface {
	Solve(ctx context.Context, task *model.Task) (*model.Result, error)
}

// NewHandler routes POST /api/solve and GET /api/solves/logs. Requests must
// include an Authorization header with "Bearer <token>" when token is non-empty.
func NewHandler(s Solver, store journal.Store, token string, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.NopLogger{}
	}
	if store == nil {
		store = journal.NopStore{}
	}
	mux := http.NewServeMux()
	mux.Handle("POST /api/solve", NewSolveHandler(s, log))
	mux.Handle("GET /api/solves/logs", NewLogHandler(store))
	return requireToken(token, mux)
}

func requireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	want := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewSolveHandler decodes a task, solves it synchronously and answers with
// the result. A result without a solution is still a 200 answer.
func NewSolveHandler(s Solver, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in dto.Task
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "decode task: "+err.Error())
			return
		}
		task, err := in.ToModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		key := r.Header.Get("X-Request-Key")
		if key == "" {
			key = uuid.NewString()
		}
		res, err := s.Solve(events.WithKey(r.Context(), key), task)
		if err != nil {
			log.Warnf("http solve %s: %v", key, err)
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		w.Header().Set("X-Request-Key", key)
		writeJSON(w, http.StatusOK, dto.FromResult(res))
	})
}

// NewLogHandler serves journal records filtered by the start, end (RFC3339),
// task_id, status and limit query parameters.
func NewLogHandler(store journal.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := parseQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if records == nil {
			records = []journal.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})
}

func parseQuery(r *http.Request) (journal.Query, error) {
	var q journal.Query
	v := r.URL.Query()
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if s := v.Get(name); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return q, errors.New(name + ": expected RFC3339 time")
			}
			*dst = t
		}
	}
	if s := v.Get("task_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, errors.New("task_id: expected an integer")
		}
		q.TaskID = &id
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errors.New("limit: expected a non-negative integer")
		}
		q.Limit = n
	}
	q.Status = v.Get("status")
	return q, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
