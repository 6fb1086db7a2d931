package contact

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"html/template"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/domain"
	"github.com/simp-lee/gocontacts/internal/middleware"
	"github.com/simp-lee/gocontacts/internal/notify"
	"github.com/simp-lee/gocontacts/internal/pkg"
)

// stubTemplates renders just enough of each view to assert on.
const stubTemplates = `{{define "contact/list.html"}}list:{{.SessionID}}:{{range .Contacts}}{{.ID}},{{end}}:{{range .Toasts}}{{.Message}};{{end}}{{end}}` +
	`{{define "contact/results.html"}}results:{{range .Contacts}}{{.ID}},{{end}}{{end}}` +
	`{{define "contact/rows.html"}}rows:{{range .State.LastBatch}}{{.ID}},{{end}}:more={{.State.CanLoadMore}}{{end}}` +
	`{{define "contact/view.html"}}view:{{.Contact.Name}}{{end}}` +
	`{{define "contact/form.html"}}form:{{.Title}}:{{.Form.Values.Name}}:{{.Form.SubmitError}}:{{range .Toasts}}{{.Message}};{{end}}{{end}}` +
	`{{define "contact/form_panel.html"}}panel:{{.Form.SubmitError}}|name={{(.Feedback "name").Message}}|phone={{(.Feedback "phone").Message}}{{end}}` +
	`{{define "contact/field.html"}}field:{{.Field}}:{{.FieldFeedback.Message}}:touched={{.Touched}}:submit={{.Form.CanSubmit}}{{with .Form.RejectedPhone}}:rejected={{.}}{{end}}{{end}}` +
	`{{define "contact/avatar.html"}}avatar:{{.Form.Values.Avatar}}:{{(.Feedback "avatar").Message}}{{end}}`

type pageEnv struct {
	router   *gin.Engine
	repo     *mockContactRepo
	sessions *Sessions
}

// setupPageRouter wires the page handler the way the app does: a real service
// over a mock repository, notifications collected per request.
func setupPageRouter(t *testing.T, lister Lister, debounce time.Duration) *pageEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMockRepo()
	svc := NewContactService(repo, notify.ContextSink{})
	if lister == nil {
		lister = svc
	}
	sessions := NewSessions(lister, 10, time.Minute, WithDebounce(debounce))
	t.Cleanup(sessions.Purge)

	r := gin.New()
	r.Use(middleware.Notifications())
	r.SetHTMLTemplate(template.Must(template.New("").Parse(stubTemplates)))

	m := NewModule(NewContactHandler(svc, nil), NewContactPageHandler(svc, nil, nil, sessions))
	m.RegisterRoutes(r.Group("/api/v1"), r.Group(""))

	return &pageEnv{router: r, repo: repo, sessions: sessions}
}

func (e *pageEnv) do(method, target string, form url.Values, htmx bool, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func flashCookie(t *testing.T, w *httptest.ResponseRecorder) (*http.Cookie, []pkg.Toast) {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name != pkg.FlashCookie || c.Value == "" {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(c.Value)
		if err != nil {
			t.Fatalf("decode flash: %v", err)
		}
		var toasts []pkg.Toast
		if err := json.Unmarshal(raw, &toasts); err != nil {
			t.Fatalf("unmarshal flash: %v", err)
		}
		return c, toasts
	}
	return nil, nil
}

func toastTrigger(t *testing.T, w *httptest.ResponseRecorder) []pkg.Toast {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var trigger struct {
		ShowToast []pkg.Toast `json:"showToast"`
	}
	if err := json.Unmarshal([]byte(raw), &trigger); err != nil {
		t.Fatalf("parse HX-Trigger %q: %v", raw, err)
	}
	return trigger.ShowToast
}

func validForm() url.Values {
	return url.Values{
		"name":  {"John Doe"},
		"phone": {"123-456-7890"},
		"mode":  {"create"},
	}
}

func TestNewContactPageHandler_Defaults(t *testing.T) {
	h := NewContactPageHandler(nil, nil, nil, nil)
	if h.schema == nil || h.avatars == nil {
		t.Fatal("expected default schema and avatar ingestor")
	}
}

func TestListPage(t *testing.T) {
	env := setupPageRouter(t, &fakeLister{}, testDebounce)

	w := env.do(http.MethodGet, "/contacts?q=ann", nil, false)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ann-1-a,ann-1-b,") {
		t.Errorf("expected first page of the search, got %q", w.Body.String())
	}
	if env.sessions.Len() != 1 {
		t.Errorf("expected one open session, got %d", env.sessions.Len())
	}
}

func TestListPage_FailureShowsToast(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.listErr = domain.NewAppError(domain.CodeUnavailable, domain.ConnectivityMessage, nil)

	w := env.do(http.MethodGet, "/contacts", nil, false)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), domain.ConnectivityMessage) {
		t.Errorf("expected connectivity toast, got %q", w.Body.String())
	}
}

func TestSearch_SupersededRequestDoesNotSwap(t *testing.T) {
	env := setupPageRouter(t, &fakeLister{}, 100*time.Millisecond)
	sid, _ := env.sessions.Open()
	base := "/contacts/browse/" + sid + "/search?q="

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- env.do(http.MethodGet, base+"a", nil, true) }()
	time.Sleep(20 * time.Millisecond)

	w := env.do(http.MethodGet, base+"ab", nil, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "results:ab-1-a,ab-1-b,") {
		t.Errorf("unexpected results: %q", w.Body.String())
	}
	if got := w.Header().Get("HX-Replace-Url"); got != "/contacts?q=ab" {
		t.Errorf("HX-Replace-Url = %q", got)
	}

	w1 := <-first
	if w1.Code != http.StatusNoContent {
		t.Errorf("superseded request: expected 204, got %d", w1.Code)
	}
	if got := w1.Header().Get("HX-Reswap"); got != "none" {
		t.Errorf("superseded request: HX-Reswap = %q", got)
	}
}

func TestSearch_UnknownSessionRedirects(t *testing.T) {
	env := setupPageRouter(t, &fakeLister{}, testDebounce)

	w := env.do(http.MethodGet, "/contacts/browse/gone/search?q=x", nil, true)

	if got := w.Header().Get("HX-Redirect"); got != "/contacts?q=x" {
		t.Errorf("HX-Redirect = %q, want /contacts?q=x", got)
	}
}

func TestLoadMore(t *testing.T) {
	env := setupPageRouter(t, &fakeLister{}, testDebounce)
	w := env.do(http.MethodGet, "/contacts", nil, false)
	sid := strings.SplitN(strings.TrimPrefix(w.Body.String(), "list:"), ":", 2)[0]

	w = env.do(http.MethodPost, "/contacts/browse/"+sid+"/more", url.Values{}, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "rows:-2-a,-2-b,:more=true" {
		t.Errorf("body = %q", got)
	}

	env.do(http.MethodPost, "/contacts/browse/"+sid+"/more", url.Values{}, true)
	w = env.do(http.MethodPost, "/contacts/browse/"+sid+"/more", url.Values{}, true)
	if w.Code != http.StatusNoContent || w.Header().Get("HX-Reswap") != "none" {
		t.Errorf("exhausted listing: expected 204 without swap, got %d", w.Code)
	}
}

func TestLoadMore_FailureToasts(t *testing.T) {
	l := &fakeLister{}
	env := setupPageRouter(t, l, testDebounce)
	w := env.do(http.MethodGet, "/contacts", nil, false)
	sid := strings.SplitN(strings.TrimPrefix(w.Body.String(), "list:"), ":", 2)[0]

	l.mu.Lock()
	l.fn = func(_ context.Context, q domain.ListQuery) (*domain.ContactPage, error) {
		return nil, domain.NewAppError(domain.CodeRejected, "Failed to load contacts (status 500)", nil)
	}
	l.mu.Unlock()

	w = env.do(http.MethodPost, "/contacts/browse/"+sid+"/more", url.Values{}, true)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	toasts := toastTrigger(t, w)
	if len(toasts) != 1 || toasts[0].Message != "Failed to load contacts (status 500)" || toasts[0].Type != "error" {
		t.Errorf("toasts = %+v", toasts)
	}
}

func TestViewPage_NotFoundRedirectsWithFlash(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)

	w := env.do(http.MethodGet, "/contacts/42", nil, false)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/contacts" {
		t.Errorf("Location = %q", loc)
	}
	cookie, toasts := flashCookie(t, w)
	if len(toasts) != 1 || toasts[0].Type != "error" || toasts[0].Message != "Contact not found" {
		t.Fatalf("flash = %+v", toasts)
	}

	w = env.do(http.MethodGet, "/contacts", nil, false, cookie)
	if !strings.Contains(w.Body.String(), "Contact not found;") {
		t.Errorf("listing should show the flashed toast, got %q", w.Body.String())
	}
}

func TestViewPage(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.contacts["42"] = &domain.Contact{
		BaseModel:    domain.BaseModel{ID: "42"},
		ContactInput: domain.ContactInput{Name: "Ann"},
	}

	w := env.do(http.MethodGet, "/contacts/42", nil, false)
	if w.Code != http.StatusOK || w.Body.String() != "view:Ann" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestNewAndEditPage(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.contacts["42"] = &domain.Contact{
		BaseModel:    domain.BaseModel{ID: "42"},
		ContactInput: domain.ContactInput{Name: "Ann", Phone: "4155552671"},
	}

	w := env.do(http.MethodGet, "/contacts/new", nil, false)
	if !strings.HasPrefix(w.Body.String(), "form:Add User::") {
		t.Errorf("new page = %q", w.Body.String())
	}

	w = env.do(http.MethodGet, "/contacts/42/edit", nil, false)
	if !strings.HasPrefix(w.Body.String(), "form:Edit User:Ann:") {
		t.Errorf("edit page = %q", w.Body.String())
	}

	w = env.do(http.MethodGet, "/contacts/7/edit", nil, true)
	if got := w.Header().Get("HX-Redirect"); got != "/contacts" {
		t.Errorf("edit of missing contact: HX-Redirect = %q", got)
	}
}

func TestValidateField(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{
			name: "change before blur stays quiet",
			form: url.Values{"field": {"phone"}, "event": {"input"}, "phone": {"abc"}},
			want: "field:phone::touched=:submit=false",
		},
		{
			name: "blur shows error",
			form: url.Values{"field": {"phone"}, "event": {"focusout"}, "phone": {"abc"}},
			want: "field:phone:Invalid phone number format:touched=phone:submit=false",
		},
		{
			name: "change on touched field revalidates",
			form: url.Values{"field": {"phone"}, "event": {"input"}, "phone": {"4155552671"}, "name": {"Ann"}, "touched": {"phone"}},
			want: "field:phone::touched=phone:submit=true",
		},
		{
			name: "errors of other touched fields block submit",
			form: url.Values{"field": {"name"}, "event": {"blur"}, "name": {"Ann"}, "phone": {"1"}, "touched": {"phone"}},
			want: "field:name::touched=name,phone:submit=false",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/contacts/form/validate", tt.form, true)
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}
			if got := w.Body.String(); got != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}

	w := env.do(http.MethodPost, "/contacts/form/validate", url.Values{"field": {"email"}}, true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown field: expected 400, got %d", w.Code)
	}
}

func TestValidateField_KeepsRejectedPhone(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	posted := func(field, event string) url.Values {
		return url.Values{
			"field":       {field},
			"event":       {event},
			"name":        {"Ann"},
			"phone":       {"4155552671"},
			"touched":     {"name,phone,bio,avatar"},
			"phone_error": {"Phone number already exists"},
		}
	}

	w := env.do(http.MethodPost, "/contacts/form/validate", posted("name", "blur"), true)
	want := "field:name::touched=name,phone,bio,avatar:submit=false:rejected=Phone number already exists"
	if got := w.Body.String(); got != want {
		t.Errorf("blur on name: body = %q, want %q", got, want)
	}

	w = env.do(http.MethodPost, "/contacts/form/validate", posted("phone", "input"), true)
	want = "field:phone::touched=name,phone,bio,avatar:submit=true"
	if got := w.Body.String(); got != want {
		t.Errorf("edit of phone: body = %q, want %q", got, want)
	}
}

func TestCreateHTMX_Success(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)

	w := env.do(http.MethodPost, "/contacts", validForm(), true)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Header().Get("HX-Redirect"); got != "/contacts" {
		t.Errorf("HX-Redirect = %q", got)
	}
	want := domain.ContactInput{Name: "John Doe", Phone: "123-456-7890", Bio: "", Avatar: ""}
	if env.repo.lastInput != want {
		t.Errorf("repository received %+v, want %+v", env.repo.lastInput, want)
	}
	_, toasts := flashCookie(t, w)
	if len(toasts) != 1 || toasts[0].Type != "success" || toasts[0].Message != "Contact created successfully" {
		t.Errorf("flash = %+v", toasts)
	}
}

func TestCreateHTMX_InvalidNeverSubmits(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)

	w := env.do(http.MethodPost, "/contacts", url.Values{"name": {""}, "phone": {""}}, true)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "panel:|name=Name is required|phone=Phone number is required" {
		t.Errorf("body = %q", got)
	}
	if len(env.repo.contacts) != 0 || env.repo.lastInput != (domain.ContactInput{}) {
		t.Error("invalid form must not reach the repository")
	}
	if w.Header().Get("HX-Redirect") != "" {
		t.Error("invalid form must not redirect")
	}
}

func TestCreateHTMX_ServiceError(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.createErr = domain.NewAppError(domain.CodeAlreadyExists, "Phone number already exists", nil)

	w := env.do(http.MethodPost, "/contacts", validForm(), true)

	if got := w.Header().Get("HX-Redirect"); got != "" {
		t.Errorf("expected no HX-Redirect on error, got %q", got)
	}
	if got := w.Body.String(); got != "panel:Phone number already exists|name=|phone=Phone number already exists" {
		t.Errorf("body = %q", got)
	}
	toasts := toastTrigger(t, w)
	if len(toasts) != 1 || toasts[0].Message != "Phone number already exists" {
		t.Errorf("toasts = %+v", toasts)
	}
}

func TestCreate_NonHTMXFailureRendersFullPage(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.createErr = domain.NewAppError(domain.CodeUnavailable, domain.ConnectivityMessage, nil)

	w := env.do(http.MethodPost, "/contacts", validForm(), false)

	body := w.Body.String()
	if !strings.HasPrefix(body, "form:Add User:John Doe:"+domain.ConnectivityMessage) {
		t.Errorf("body = %q", body)
	}
	if !strings.HasSuffix(body, domain.ConnectivityMessage+";") {
		t.Errorf("expected toast in full page, got %q", body)
	}
}

func TestUpdateHTMX_Success(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.contacts["1"] = &domain.Contact{BaseModel: domain.BaseModel{ID: "1"}}

	form := validForm()
	form.Set("mode", "edit")
	w := env.do(http.MethodPut, "/contacts/1", form, true)

	if got := w.Header().Get("HX-Redirect"); got != "/contacts" {
		t.Fatalf("HX-Redirect = %q (body %q)", got, w.Body.String())
	}
	if env.repo.contacts["1"].Name != "John Doe" {
		t.Errorf("update not applied: %+v", env.repo.contacts["1"])
	}
	_, toasts := flashCookie(t, w)
	if len(toasts) != 1 || toasts[0].Message != "Contact updated successfully" {
		t.Errorf("flash = %+v", toasts)
	}
}

func TestDeleteHTMX(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)
	env.repo.contacts["1"] = &domain.Contact{BaseModel: domain.BaseModel{ID: "1"}}

	w := env.do(http.MethodDelete, "/contacts/1", nil, true)
	if got := w.Header().Get("HX-Redirect"); got != "/contacts" {
		t.Errorf("HX-Redirect = %q", got)
	}
	if _, toasts := flashCookie(t, w); len(toasts) != 1 || toasts[0].Message != "Contact deleted successfully" {
		t.Errorf("flash = %+v", toasts)
	}

	w = env.do(http.MethodDelete, "/contacts/1", nil, true)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if got := w.Header().Get("HX-Reswap"); got != "none" {
		t.Errorf("HX-Reswap = %q", got)
	}
	if toasts := toastTrigger(t, w); len(toasts) != 1 || toasts[0].Message != "Contact not found" {
		t.Errorf("toasts = %+v", toasts)
	}
}

func uploadAvatar(env *pageEnv, filename string, data []byte) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "Ann")
	_ = mw.WriteField("avatar", "data:image/png;base64,OLD")
	fw, _ := mw.CreateFormFile(avatarFormFile, filename)
	_, _ = fw.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/contacts/form/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestUploadAvatar(t *testing.T) {
	env := setupPageRouter(t, nil, testDebounce)

	w := uploadAvatar(env, "me.png", pngBytes(1024))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Body.String(), "avatar:data:image/png;base64,iVBORw0KGgo") {
		t.Errorf("body = %q", w.Body.String()[:min(len(w.Body.String()), 60)])
	}
	if !strings.HasSuffix(w.Body.String(), ":") {
		t.Error("accepted image must clear the avatar error")
	}

	w = uploadAvatar(env, "notes.txt", []byte("hello"))
	if got := w.Body.String(); got != "avatar:data:image/png;base64,OLD:Only JPEG and PNG images are allowed" {
		t.Errorf("rejected upload: body = %q", got)
	}
}
