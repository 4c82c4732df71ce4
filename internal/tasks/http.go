package tasks

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/todo-web-GO/internal/session"
)

const (
	maxJSONBody   = 64 << 10
	maxFormBody = 1 << 20
)

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TaskID  *int64 `json:"task_id,omitempty"`
}

// RegisterRoutes mounts the page (GET) and the mutation endpoint (POST) on
// path. Both expect the session gate to have run.
func RegisterRoutes(r chi.Router, path string, svc *Service, page *Page, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.Get(path, showPage(svc, page, logger))
	r.Post(path, mutate(svc, logger))
}

func showPage(svc *Service, page *Page, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := session.FromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, actionResponse{Message: "Authentication required"})
			return
		}

		list := svc.List(r.Context(), id.UserID)
		view := PageView{
			Username: id.Username,
			Tasks:    list,
			Stats:    ComputeStats(list),
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, view)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := page.Render(w, view); err != nil {
			logger.ErrorContext(r.Context(), "page_render_failed", slog.String("error", err.Error()))
		}
	}
}

func mutate(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := session.FromContext(r.Context())
		if !ok {
			writeJSON(w, http.StatusUnauthorized, actionResponse{Message: "Authentication required"})
			return
		}

		req, err := decodeMutation(w, r)
		if err != nil {
			logger.WarnContext(r.Context(), "todo_bad_request",
				slog.Int64("user_id", id.UserID),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusBadRequest, actionResponse{Message: "Invalid request body"})
			return
		}

		resp, err := dispatch(r, svc, id.UserID, req)
		if err != nil {
			logger.ErrorContext(r.Context(), "todo_action_failed",
				slog.String("action", req.Action),
				slog.Int64("user_id", id.UserID),
				slog.String("kind", KindOf(err).String()),
				slog.String("error", err.Error()),
			)
			writeJSON(w, statusFor(KindOf(err)), actionResponse{Message: PublicMessage(err)})
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func dispatch(r *http.Request, svc *Service, ownerID int64, req mutationRequest) (actionResponse, error) {
	m, err := parseMutation(req)
	if err != nil {
		recordMutation("invalid", err)
		return actionResponse{}, err
	}
	resp, err := m.apply(r.Context(), svc, ownerID)
	recordMutation(string(m.action()), err)
	return resp, err
}

func decodeMutation(w http.ResponseWriter, r *http.Request) (mutationRequest, error) {
	var req mutationRequest

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err := dec.Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseMultipartForm(maxFormBody); err != nil {
			return req, err
		}
	case "application/x-www-form-urlencoded", "":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseForm(); err != nil {
			return req, err
		}
	default:
		return req, errors.New("unsupported content type " + ct)
	}

	req.Action = r.PostForm.Get("action")
	req.Task = looseString(r.PostForm.Get("task"))
	req.TaskID = looseString(r.PostForm.Get("task_id"))
	req.Completed = looseString(r.PostForm.Get("completed"))
	return req, nil
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
