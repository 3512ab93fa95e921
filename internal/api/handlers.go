// Package api exposes the producer's share surface and the consumer's
// wake/status endpoints over HTTP, plus an MCP server for agent
// surfaces. The HTTP response doubles as the session's completion
// signal: a share request is always answered, whatever happened inside
// the pipeline.
package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/shuttle/internal/attachment"
	"github.com/kalambet/shuttle/internal/inbox"
	"github.com/kalambet/shuttle/internal/session"
	"github.com/kalambet/shuttle/internal/storage"
	"github.com/kalambet/shuttle/internal/syncstatus"
)

const maxShareBodySize = 25 << 20 // 25MB: shared images arrive base64-encoded

// Deps holds the wired dependencies for the HTTP surface.
type Deps struct {
	Session *session.Session
	Inbox   *inbox.Store // nil when the shared container is unavailable
	Store   *storage.Store
	Status  *syncstatus.Tracker
	Token   string
}

// NewHandler builds the chi router for all shuttle endpoints.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(BearerAuth(deps.Token))

	r.Post("/share", handleShare(deps))
	r.Post("/wake", handleWake(deps))
	r.Get("/status", handleStatus(deps))
	r.Get("/items", handleListItems(deps))
	r.Get("/inbox", handleListInbox(deps))

	return r
}

// ShareRequest is one sharing session's worth of offered content.
type ShareRequest struct {
	Caption string      `json:"caption"`
	URLs    []string    `json:"urls"`
	Texts   []string    `json:"texts"`
	Files   []ShareFile `json:"files"`
}

// ShareFile carries file bytes (images, HTML, PDF) base64-encoded.
type ShareFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

func handleShare(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxShareBodySize)
		defer r.Body.Close()

		var req ShareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		items := make([]attachment.Provider, 0, len(req.URLs)+len(req.Texts)+len(req.Files))
		for _, u := range req.URLs {
			items = append(items, &attachment.LinkItem{Raw: u})
		}
		for _, t := range req.Texts {
			items = append(items, &attachment.TextItem{Text: t})
		}
		for _, f := range req.Files {
			data, err := base64.StdEncoding.DecodeString(f.Data)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 data for file %q", f.Name)
				return
			}
			items = append(items, &attachment.FileItem{Name: f.Name, ContentType: f.ContentType, Data: data})
		}

		res := deps.Session.Run(r.Context(), req.Caption, items, nil)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"entry_id": res.EntryID,
			"title":    res.Record.Title,
		})
	}
}

func handleWake(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Status.TriggerSync()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(deps.Status.Status())
	}
}

type itemResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle,omitempty"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	CreatedAt string `json:"created_at"`
}

func handleListItems(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		items, err := deps.Store.ListItems(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list items: %v", err)
			return
		}

		resp := make([]itemResponse, 0, len(items))
		for _, i := range items {
			resp = append(resp, itemResponse{
				ID:        i.ID,
				Title:     i.Title,
				Subtitle:  i.Subtitle,
				Text:      i.Text,
				URL:       i.URL,
				ImagePath: i.ImagePath,
				CreatedAt: i.CreatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

func handleListInbox(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Inbox == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "shared container unavailable")
			return
		}
		entries, err := deps.Inbox.List()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list inbox: %v", err)
			return
		}

		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ID)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"pending": ids})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
