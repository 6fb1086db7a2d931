package contact

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/domain"
	"github.com/simp-lee/gocontacts/internal/pkg"
)

// setupAPIRouter creates a gin engine with REST API routes for handler testing.
func setupAPIRouter(h *ContactHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api/v1/contacts")
	api.POST("", h.Create)
	api.GET("", h.List)
	api.POST("/validate", h.Validate)
	api.GET("/:id", h.Get)
	api.PUT("/:id", h.Update)
	api.DELETE("/:id", h.Delete)

	return r
}

func newAPIRouter(repo *mockContactRepo) *gin.Engine {
	return setupAPIRouter(NewContactHandler(NewContactService(repo, nil), nil))
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestContactHandler_Create(t *testing.T) {
	repo := newMockRepo()
	r := newAPIRouter(repo)

	w := doJSON(r, http.MethodPost, "/api/v1/contacts", `{"name":"John Doe","phone":"123-456-7890"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp pkg.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Message != "success" {
		t.Errorf("expected message 'success', got %q", resp.Message)
	}
	want := domain.ContactInput{Name: "John Doe", Phone: "123-456-7890"}
	if repo.lastInput != want {
		t.Errorf("repository received %+v, want %+v", repo.lastInput, want)
	}
}

func TestContactHandler_Create_ValidationError(t *testing.T) {
	repo := newMockRepo()
	r := newAPIRouter(repo)

	w := doJSON(r, http.MethodPost, "/api/v1/contacts", `{"name":"","phone":"abc"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	var resp pkg.ValidationErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Errors["name"] != "Name is required" {
		t.Errorf("name error = %q", resp.Errors["name"])
	}
	if resp.Errors["phone"] != "Invalid phone number format" {
		t.Errorf("phone error = %q", resp.Errors["phone"])
	}
	if len(repo.contacts) != 0 {
		t.Error("invalid input must not reach the repository")
	}
}

func TestContactHandler_Create_InvalidJSON(t *testing.T) {
	r := newAPIRouter(newMockRepo())

	w := doJSON(r, http.MethodPost, "/api/v1/contacts", `{"name":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestContactHandler_Create_Conflict(t *testing.T) {
	repo := newMockRepo()
	repo.createErr = domain.NewAppError(domain.CodeAlreadyExists, "Phone number already exists", nil)
	r := newAPIRouter(repo)

	w := doJSON(r, http.MethodPost, "/api/v1/contacts", `{"name":"A","phone":"4155552671"}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}
	var resp pkg.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Message != "Phone number already exists" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestContactHandler_Get(t *testing.T) {
	repo := newMockRepo()
	repo.contacts["42"] = &domain.Contact{
		BaseModel:    domain.BaseModel{ID: "42"},
		ContactInput: domain.ContactInput{Name: "Ann", Phone: "4155552671"},
	}
	r := newAPIRouter(repo)

	w := doJSON(r, http.MethodGet, "/api/v1/contacts/42", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"name":"Ann"`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w = doJSON(r, http.MethodGet, "/api/v1/contacts/7", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 for unknown contact, got %d", w.Code)
	}
}

func TestContactHandler_List(t *testing.T) {
	repo := newMockRepo()
	r := newAPIRouter(repo)

	w := doJSON(r, http.MethodGet, "/api/v1/contacts?page=3&q=+jo+", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if repo.lastQuery != (domain.ListQuery{Page: 3, Query: "jo"}) {
		t.Errorf("query = %+v", repo.lastQuery)
	}

	repo.listErr = domain.NewAppError(domain.CodeUnavailable, domain.ConnectivityMessage, nil)
	w = doJSON(r, http.MethodGet, "/api/v1/contacts", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestContactHandler_UpdateAndDelete(t *testing.T) {
	repo := newMockRepo()
	repo.contacts["1"] = &domain.Contact{BaseModel: domain.BaseModel{ID: "1"}}
	r := newAPIRouter(repo)

	w := doJSON(r, http.MethodPut, "/api/v1/contacts/1", `{"name":"New","phone":"(415) 555-2671","bio":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if repo.contacts["1"].Name != "New" {
		t.Errorf("update not applied: %+v", repo.contacts["1"])
	}

	w = doJSON(r, http.MethodPut, "/api/v1/contacts/1", `{"name":"New","phone":""}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid update: expected 400, got %d", w.Code)
	}

	w = doJSON(r, http.MethodDelete, "/api/v1/contacts/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = doJSON(r, http.MethodDelete, "/api/v1/contacts/1", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestContactHandler_Validate(t *testing.T) {
	r := newAPIRouter(newMockRepo())

	w := doJSON(r, http.MethodPost, "/api/v1/contacts/validate", `{"name":"John Doe","phone":"123-456-7890"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPost, "/api/v1/contacts/validate", `{"name":"x","phone":"1","bio":"`+strings.Repeat("b", 501)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp pkg.ValidationErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if _, ok := resp.Errors["name"]; ok {
		t.Error("valid name reported as invalid")
	}
	if resp.Errors["bio"] != "Bio must be less than 500 characters" || resp.Errors["phone"] == "" {
		t.Errorf("unexpected errors: %v", resp.Errors)
	}
}
