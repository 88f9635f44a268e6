package httpapi

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"itemservice/pkg/item"
)

// templateFS packs the pages so deployments ship one binary.
//
//go:embed templates/*.gohtml
var templateFS embed.FS

const (
	readTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
)

// Server wires HTTP endpoints to the item controller and the JSON API.
type Server struct {
	items      item.Store
	controller *ItemController
	views      *template.Template
	logger     *zap.Logger
}

// New parses the templates once so each request only executes them.
func New(items item.Store, logger *zap.Logger) (*Server, error) {
	views, err := template.ParseFS(templateFS, "templates/*.gohtml")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		items:      items,
		controller: NewItemController(items, logger),
		views:      views,
		logger:     logger,
	}, nil
}

// Handler exposes the mux with HTML pages, the JSON API and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/items", http.StatusFound)
	})
	mux.HandleFunc("GET /items", s.listItems)
	mux.HandleFunc("GET /items/{itemId}", s.showItem)
	mux.HandleFunc("GET /items/add", s.showAddForm)
	mux.HandleFunc("POST /items/add", s.addItem)
	mux.HandleFunc("GET /items/{itemId}/edit", s.showEditForm)
	mux.HandleFunc("POST /items/{itemId}/edit", s.editItem)
	mux.HandleFunc("GET /api/items", s.apiListItems)
	mux.HandleFunc("GET /api/items/{itemId}", s.apiShowItem)
	return withRequestID(s.withAccessLog(mux))
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	res, err := s.controller.Items(ctx)
	s.respond(w, r, res, err)
}

func (s *Server) showItem(w http.ResponseWriter, r *http.Request) {
	id, err := ParseItemID(r.PathValue("itemId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	res, err := s.controller.Item(ctx, id, r.URL.Query().Get("status") == "true")
	s.respond(w, r, res, err)
}

func (s *Server) showAddForm(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.controller.AddForm(), nil)
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	form, err := ParseItemForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	res, err := s.controller.AddItem(ctx, form)
	s.respond(w, r, res, err)
}

func (s *Server) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := ParseItemID(r.PathValue("itemId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	res, err := s.controller.EditForm(ctx, id)
	s.respond(w, r, res, err)
}

func (s *Server) editItem(w http.ResponseWriter, r *http.Request) {
	id, err := ParseItemID(r.PathValue("itemId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	form, err := ParseItemForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	res, err := s.controller.Edit(ctx, id, form)
	s.respond(w, r, res, err)
}

// respond executes a controller result: a 302 for redirects, otherwise the rendered template.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, res Result, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if res.IsRedirect() {
		location, err := res.Redirect.Location()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		http.Redirect(w, r, location, http.StatusFound)
		return
	}

	// Render into a buffer so a template error still yields a clean 500.
	var buf bytes.Buffer
	if err := s.views.ExecuteTemplate(&buf, res.View, res.Model); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// fail maps an error to a plain-text status response and logs it.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := s.classify(r, err)
	http.Error(w, message, status)
}

// classify picks the status for err and logs it at a level matching the status.
func (s *Server) classify(r *http.Request, err error) (int, string) {
	logger := requestLogger(r.Context(), s.logger).With(
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))

	switch {
	case errors.Is(err, item.ErrNotFound):
		logger.Info("item not found")
		return http.StatusNotFound, item.ErrNotFound.Error()
	case IsValidation(err):
		logger.Info("request rejected")
		return http.StatusBadRequest, err.Error()
	default:
		logger.Error("request failed")
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func (s *Server) apiListItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	items, err := s.items.FindAll(ctx)
	if err != nil {
		status, message := s.classify(r, err)
		s.respondError(w, message, status)
		return
	}
	s.respondJSON(w, items)
}

func (s *Server) apiShowItem(w http.ResponseWriter, r *http.Request) {
	id, err := ParseItemID(r.PathValue("itemId"))
	if err != nil {
		status, message := s.classify(r, err)
		s.respondError(w, message, status)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	found, err := s.items.FindByID(ctx, id)
	if err != nil {
		status, message := s.classify(r, err)
		s.respondError(w, message, status)
		return
	}
	s.respondJSON(w, found)
}

func (s *Server) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// respondError keeps JSON formatting consistent across endpoints.
func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
