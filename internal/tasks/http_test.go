package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/s1natex/todo-web-GO/internal/session"
)

type testResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	TaskID  *int64 `json:"task_id"`
}

func newTestServer(t *testing.T, id *session.Identity) (*chi.Mux, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	page, err := NewPage("gradient", "/", "/logout")
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	r := chi.NewRouter()
	if id != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(session.WithIdentity(req.Context(), *id)))
			})
		})
	}
	RegisterRoutes(r, "/", svc, page, discardLogger())
	return r, svc
}

func alice() *session.Identity { return &session.Identity{UserID: 1, Username: "alice"} }

func postForm(t *testing.T, r http.Handler, form url.Values) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return serve(t, r, req)
}

func postJSON(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return serve(t, r, req)
}

func serve(t *testing.T, r http.Handler, req *http.Request) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse JSON: %v (body=%s)", err, rec.Body.String())
	}
	return rec, resp
}

func TestPostAddTask_Success(t *testing.T) {
	r, svc := newTestServer(t, alice())

	rec, resp := postForm(t, r, url.Values{"action": {"add_task"}, "task": {"  learn chi  "}})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	if !resp.Success || resp.Message != "Task added successfully!" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.TaskID == nil || *resp.TaskID == 0 {
		t.Fatalf("expected task_id in response")
	}

	list := svc.List(context.Background(), 1)
	if len(list) != 1 || list[0].Text != "learn chi" || list[0].ID != *resp.TaskID {
		t.Fatalf("unexpected stored tasks: %+v", list)
	}
}

func TestPostAddTask_Empty(t *testing.T) {
	r, _ := newTestServer(t, alice())

	rec, resp := postForm(t, r, url.Values{"action": {"add_task"}, "task": {"   "}})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp.Success || resp.Message != "Task cannot be empty" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "task_id") {
		t.Fatalf("task_id must only appear on successful adds: %s", rec.Body.String())
	}
}

func TestPostToggleAndDelete(t *testing.T) {
	r, svc := newTestServer(t, alice())
	_, added := postForm(t, r, url.Values{"action": {"add_task"}, "task": {"x"}})
	id := strconv.FormatInt(*added.TaskID, 10)

	rec, resp := postForm(t, r, url.Values{"action": {"toggle_task"}, "task_id": {id}, "completed": {"1"}})
	if rec.Code != http.StatusOK || !resp.Success || resp.Message != "Task updated successfully!" {
		t.Fatalf("toggle failed: %d %+v", rec.Code, resp)
	}
	if !svc.List(context.Background(), 1)[0].Completed {
		t.Fatalf("expected task to be completed")
	}

	rec, resp = postForm(t, r, url.Values{"action": {"delete_task"}, "task_id": {id}})
	if rec.Code != http.StatusOK || !resp.Success || resp.Message != "Task deleted successfully!" {
		t.Fatalf("delete failed: %d %+v", rec.Code, resp)
	}

	rec, resp = postForm(t, r, url.Values{"action": {"delete_task"}, "task_id": {id}})
	if rec.Code != http.StatusNotFound || resp.Success {
		t.Fatalf("expected 404 on second delete, got %d %+v", rec.Code, resp)
	}
	if resp.Message != "Task not found or you do not have permission to delete it" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestPostMultipartForm(t *testing.T) {
	r, _ := newTestServer(t, alice())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("action", "add_task")
	_ = mw.WriteField("task", "from FormData")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, resp := serve(t, r, req)
	if rec.Code != http.StatusOK || !resp.Success || resp.TaskID == nil {
		t.Fatalf("multipart add failed: %d %+v", rec.Code, resp)
	}
}

func TestPostOversizedForm(t *testing.T) {
	r, svc := newTestServer(t, alice())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("action", "add_task")
	_ = mw.WriteField("task", "x")
	fw, _ := mw.CreateFormFile("junk", "junk.bin")
	_, _ = fw.Write(bytes.Repeat([]byte("a"), 2*maxFormBody))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, resp := serve(t, r, req)
	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400 for oversized multipart body, got %d %+v", rec.Code, resp)
	}

	form := url.Values{"action": {"add_task"}, "task": {"x"}, "junk": {strings.Repeat("a", 2*maxFormBody)}}
	rec, resp = postForm(t, r, form)
	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400 for oversized urlencoded body, got %d %+v", rec.Code, resp)
	}

	if n := len(svc.List(context.Background(), 1)); n != 0 {
		t.Fatalf("expected no tasks stored, got %d", n)
	}
}

func TestPostJSONBody(t *testing.T) {
	r, svc := newTestServer(t, alice())

	rec, resp := postJSON(t, r, `{"action":"add_task","task":"json task"}`)
	if rec.Code != http.StatusOK || resp.TaskID == nil {
		t.Fatalf("json add failed: %d %+v", rec.Code, resp)
	}

	body := `{"action":"toggle_task","task_id":` + strconv.FormatInt(*resp.TaskID, 10) + `,"completed":true}`
	rec, resp = postJSON(t, r, body)
	if rec.Code != http.StatusOK || !resp.Success {
		t.Fatalf("json toggle failed: %d %+v", rec.Code, resp)
	}
	if !svc.List(context.Background(), 1)[0].Completed {
		t.Fatalf("expected task to be completed")
	}
}

func TestPostInvalidJSON(t *testing.T) {
	r, _ := newTestServer(t, alice())

	rec, resp := postJSON(t, r, `{"action":`)
	if rec.Code != http.StatusBadRequest || resp.Success {
		t.Fatalf("expected 400, got %d %+v", rec.Code, resp)
	}
	if resp.Message != "Invalid request body" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}

func TestPostInvalidAction(t *testing.T) {
	r, _ := newTestServer(t, alice())

	for _, action := range []string{"", "edit_task", "ADD_TASK"} {
		rec, resp := postForm(t, r, url.Values{"action": {action}})
		if rec.Code != http.StatusBadRequest || resp.Success || resp.Message != "Invalid action" {
			t.Fatalf("action %q: expected invalid action, got %d %+v", action, rec.Code, resp)
		}
	}
}

func TestPostInvalidTaskID(t *testing.T) {
	r, _ := newTestServer(t, alice())

	rec, resp := postForm(t, r, url.Values{"action": {"toggle_task"}, "task_id": {"abc"}, "completed": {"1"}})
	if rec.Code != http.StatusBadRequest || resp.Message != "Valid Task ID is required" {
		t.Fatalf("expected validation error, got %d %+v", rec.Code, resp)
	}
}

func TestOtherUsersTaskIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	page, _ := NewPage("light", "/", "")
	id, err := svc.Add(context.Background(), 1, "alice only")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	bob := session.Identity{UserID: 2, Username: "bob"}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(session.WithIdentity(req.Context(), bob)))
		})
	})
	RegisterRoutes(r, "/", svc, page, discardLogger())

	rec, resp := postForm(t, r, url.Values{"action": {"toggle_task"}, "task_id": {strconv.FormatInt(id, 10)}, "completed": {"1"}})
	if rec.Code != http.StatusNotFound || resp.Success {
		t.Fatalf("expected 404, got %d %+v", rec.Code, resp)
	}
	if svc.List(context.Background(), 1)[0].Completed {
		t.Fatalf("bob must not be able to complete alice's task")
	}
}

func TestMissingIdentityFailsClosed(t *testing.T) {
	r, _ := newTestServer(t, nil)

	rec, resp := postForm(t, r, url.Values{"action": {"add_task"}, "task": {"x"}})
	if rec.Code != http.StatusUnauthorized || resp.Success {
		t.Fatalf("expected 401, got %d %+v", rec.Code, resp)
	}
}

func TestGetPage_HTML(t *testing.T) {
	r, svc := newTestServer(t, alice())
	ctx := context.Background()
	_, _ = svc.Add(ctx, 1, "<b>escape me</b>")
	id, _ := svc.Add(ctx, 1, "done already")
	_ = svc.Toggle(ctx, 1, strconv.FormatInt(id, 10), "1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"Welcome, <strong>alice</strong>!",
		`<div class="stat-number">2</div><div>Total Tasks</div>`,
		`<div class="stat-number">1</div><div>Completed</div>`,
		`<div class="stat-number">1</div><div>Pending</div>`,
		"&lt;b&gt;escape me&lt;/b&gt;",
		`data-task-id="` + strconv.FormatInt(id, 10) + `"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	for _, want := range []string{"function addTaskToList(", "function updateStats()", "classList.toggle('completed'"} {
		if !strings.Contains(body, want) {
			t.Errorf("page script missing %q", want)
		}
	}
	if strings.Contains(body, "location.reload") {
		t.Errorf("page script should patch the list in place, not reload")
	}
	if strings.Index(body, "done already") > strings.Index(body, "escape me") {
		t.Errorf("expected newest task first")
	}
}

func TestGetPage_EmptyList(t *testing.T) {
	r, _ := newTestServer(t, alice())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !strings.Contains(rec.Body.String(), "No tasks yet") {
		t.Fatalf("expected empty-state message")
	}
}

func TestGetPage_JSON(t *testing.T) {
	r, svc := newTestServer(t, alice())
	_, _ = svc.Add(context.Background(), 1, "seeded task")

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	get.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, get)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var view PageView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if view.Username != "alice" || len(view.Tasks) != 1 || view.Tasks[0].Text != "seeded task" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.Stats != (Stats{Total: 1, Pending: 1}) {
		t.Fatalf("unexpected stats: %+v", view.Stats)
	}
}

func TestNewPage_UnknownTheme(t *testing.T) {
	if _, err := NewPage("neon", "/", ""); err == nil {
		t.Fatalf("expected error for unknown theme")
	}
	for _, name := range ThemeNames() {
		if _, err := NewPage(name, "/", ""); err != nil {
			t.Fatalf("theme %q: %v", name, err)
		}
	}
}

func TestMutationMetrics(t *testing.T) {
	r, _ := newTestServer(t, alice())
	before := testutil.ToFloat64(taskMutationsTotal.WithLabelValues("delete_task", "validation_error"))

	postForm(t, r, url.Values{"action": {"delete_task"}, "task_id": {"nope"}})

	after := testutil.ToFloat64(taskMutationsTotal.WithLabelValues("delete_task", "validation_error"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}
