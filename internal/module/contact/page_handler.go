package contact

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/domain"
	"github.com/simp-lee/gocontacts/internal/middleware"
	"github.com/simp-lee/gocontacts/internal/notify"
	"github.com/simp-lee/gocontacts/internal/pkg"
)

const (
	listPath       = "/contacts"
	avatarFormFile = "avatar_file"
)

// ContactPageHandler handles page rendering and htmx endpoints for the contact module.
type ContactPageHandler struct {
	svc      domain.ContactService
	schema   *Schema
	avatars  *AvatarIngestor
	sessions *Sessions
}

// NewContactPageHandler creates a new ContactPageHandler.
func NewContactPageHandler(svc domain.ContactService, schema *Schema, avatars *AvatarIngestor, sessions *Sessions) *ContactPageHandler {
	if schema == nil {
		schema = NewSchema()
	}
	if avatars == nil {
		avatars = NewAvatarIngestor(0)
	}
	return &ContactPageHandler{svc: svc, schema: schema, avatars: avatars, sessions: sessions}
}

// ListPage opens a directory session and renders its first page.
// GET /contacts
func (h *ContactPageHandler) ListPage(c *gin.Context) {
	q := pkg.ParseListQuery(c)
	toasts := pkg.TakeFlash(c)

	sid, dir := h.sessions.Open()
	st, err := dir.Load(c.Request.Context(), q.Query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		toasts = append(toasts, pkg.Toasts([]notify.Notification{listFailure(err)})...)
	}

	c.HTML(http.StatusOK, "contact/list.html", listView{
		SessionID: sid,
		State:     st,
		CSRFToken: middleware.GetCSRFToken(c),
		Toasts:    toasts,
	})
}

// Search records a keystroke in the search box. Only the request whose
// keystroke settles receives results; superseded requests are answered
// without a swap.
// GET /contacts/browse/:sid/search
func (h *ContactPageHandler) Search(c *gin.Context) {
	term := c.Query("q")
	dir, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		// Session expired: start over on a fresh listing.
		redirect(c, pkg.SearchURL(listPath, term))
		return
	}

	st, err := dir.Search(c.Request.Context(), term)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		noSwap(c)
		return
	case errors.Is(err, ErrDirectoryClosed):
		redirect(c, pkg.SearchURL(listPath, term))
		return
	default:
		pkg.SetToastTrigger(c, []notify.Notification{listFailure(err)})
	}

	c.Header("HX-Replace-Url", pkg.SearchURL(listPath, st.Search))
	c.HTML(http.StatusOK, "contact/results.html", listView{
		SessionID: c.Param("sid"),
		State:     st,
	})
}

// LoadMore appends the next page to the listing.
// POST /contacts/browse/:sid/more
func (h *ContactPageHandler) LoadMore(c *gin.Context) {
	dir, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		redirect(c, listPath)
		return
	}

	st, err := dir.LoadMore(c.Request.Context())
	switch {
	case err == nil:
	case errors.Is(err, ErrLoadMoreUnavailable), errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		noSwap(c)
		return
	case errors.Is(err, ErrDirectoryClosed):
		redirect(c, listPath)
		return
	default:
		// The cursor stays on the last loaded page, so the button can be retried.
		pkg.SetToastTrigger(c, []notify.Notification{listFailure(err)})
		noSwap(c)
		return
	}

	c.HTML(http.StatusOK, "contact/rows.html", listView{
		SessionID: c.Param("sid"),
		State:     st,
		OOB:       true,
	})
}

// ViewPage renders the contact detail page. A contact that cannot be loaded
// sends the user back to the listing with an error toast.
// GET /contacts/:id
func (h *ContactPageHandler) ViewPage(c *gin.Context) {
	contact, err := h.svc.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.backToList(c)
		return
	}

	c.HTML(http.StatusOK, "contact/view.html", detailView{
		Contact:   contact,
		CSRFToken: middleware.GetCSRFToken(c),
		Toasts:    pkg.TakeFlash(c),
	})
}

// NewPage renders an empty contact form.
// GET /contacts/new
func (h *ContactPageHandler) NewPage(c *gin.Context) {
	c.HTML(http.StatusOK, "contact/form.html", h.formView(c, NewForm(h.schema, nil), modeCreate, ""))
}

// EditPage renders the contact form seeded with an existing contact.
// GET /contacts/:id/edit
func (h *ContactPageHandler) EditPage(c *gin.Context) {
	id := c.Param("id")
	contact, err := h.svc.GetContact(c.Request.Context(), id)
	if err != nil {
		h.backToList(c)
		return
	}

	c.HTML(http.StatusOK, "contact/form.html", h.formView(c, NewForm(h.schema, contact), modeEdit, id))
}

// ValidateField applies one change or blur event to the posted form and
// re-renders that field's error slot together with the touched set and the
// submit button.
// POST /contacts/form/validate
func (h *ContactPageHandler) ValidateField(c *gin.Context) {
	var req FieldEventRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "validate contact field: bind error", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}
	field, ok := ParseField(req.Field)
	if !ok {
		c.Status(http.StatusBadRequest)
		return
	}

	snap := req.Snapshot()
	form := RestoreForm(h.schema, snap)
	if req.IsBlur() {
		form.Blur(field)
	} else {
		form.Change(field, field.Value(snap.Values))
	}

	view := h.formView(c, form, req.Mode, "")
	view.Field = field
	view.OOB = true
	c.HTML(http.StatusOK, "contact/field.html", view)
}

// UploadAvatar ingests a dropped or selected image into the posted form and
// re-renders the avatar field.
// POST /contacts/form/avatar
func (h *ContactPageHandler) UploadAvatar(c *gin.Context) {
	var req FormRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "upload avatar: bind error", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	var files []ImageFile
	if mf, err := c.MultipartForm(); err == nil {
		for _, fh := range mf.File[avatarFormFile] {
			files = append(files, FileFromHeader(fh))
		}
	}

	form := RestoreForm(h.schema, req.Snapshot())
	if err := form.DropAvatar(c.Request.Context(), h.avatars, files); err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		slog.DebugContext(c.Request.Context(), "avatar rejected", "error", err)
	}

	view := h.formView(c, form, req.Mode, "")
	view.OOB = true
	c.HTML(http.StatusOK, "contact/avatar.html", view)
}

// CreateHTMX submits a new contact.
// POST /contacts
func (h *ContactPageHandler) CreateHTMX(c *gin.Context) {
	h.submit(c, modeCreate, "", func(ctx context.Context, in domain.ContactInput) error {
		_, err := h.svc.CreateContact(ctx, in)
		return err
	})
}

// UpdateHTMX submits changes to an existing contact.
// PUT /contacts/:id
func (h *ContactPageHandler) UpdateHTMX(c *gin.Context) {
	id := c.Param("id")
	h.submit(c, modeEdit, id, func(ctx context.Context, in domain.ContactInput) error {
		_, err := h.svc.UpdateContact(ctx, id, in)
		return err
	})
}

// DeleteHTMX deletes a contact and returns to the listing.
// DELETE /contacts/:id
func (h *ContactPageHandler) DeleteHTMX(c *gin.Context) {
	if err := h.svc.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		pkg.SetToastTrigger(c, middleware.DrainNotifications(c))
		noSwap(c)
		return
	}

	pkg.SetFlash(c, middleware.DrainNotifications(c))
	redirect(c, listPath)
}

// submit validates the posted form and runs fn. On success the user goes back
// to the listing; on failure the form is re-rendered with its errors so the
// user can retry.
func (h *ContactPageHandler) submit(c *gin.Context, mode, id string, fn SubmitFunc) {
	var req FormRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(c.Request.Context(), "submit contact: bind error", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	form := RestoreForm(h.schema, req.Snapshot())
	err := form.Submit(c.Request.Context(), fn)
	if err == nil {
		pkg.SetFlash(c, middleware.DrainNotifications(c))
		redirect(c, listPath)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	view := h.formView(c, form, mode, id)
	notes := middleware.DrainNotifications(c)
	if pkg.IsHTMX(c) {
		pkg.SetToastTrigger(c, notes)
		c.HTML(http.StatusOK, "contact/form_panel.html", view)
		return
	}
	view.Toasts = pkg.Toasts(notes)
	c.HTML(http.StatusOK, "contact/form.html", view)
}

func (h *ContactPageHandler) formView(c *gin.Context, form *Form, mode, id string) formView {
	if mode != modeEdit {
		mode = modeCreate
	}
	return formView{
		Form:        form,
		Mode:        mode,
		ContactID:   id,
		CSRFToken:   middleware.GetCSRFToken(c),
		AvatarMaxMB: h.avatars.MaxMB(),
	}
}

// backToList redirects to the listing, carrying the notifications raised so
// far (typically the load failure) as a flash.
func (h *ContactPageHandler) backToList(c *gin.Context) {
	if c.Request.Context().Err() != nil {
		return
	}
	pkg.SetFlash(c, middleware.DrainNotifications(c))
	redirect(c, listPath)
}

// redirect navigates the browser to location: through HX-Redirect for htmx
// requests, a 303 otherwise.
func redirect(c *gin.Context, location string) {
	if pkg.IsHTMX(c) {
		c.Header("HX-Redirect", location)
		c.Status(http.StatusOK)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

// noSwap tells htmx to leave the page as it is.
func noSwap(c *gin.Context) {
	c.Header("HX-Reswap", "none")
	c.Status(http.StatusNoContent)
}

func listFailure(err error) notify.Notification {
	return notify.Failure(domain.Message(err, "Failed to load contacts"))
}
