package contact

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/gocontacts/internal/domain"
	"github.com/simp-lee/gocontacts/internal/pkg"
)

// ContactHandler handles REST API requests for the contact resource. It is a
// pass-through to the contact service with local schema validation in front
// of every write.
type ContactHandler struct {
	svc    domain.ContactService
	schema *Schema
}

// NewContactHandler creates a new ContactHandler with the given service and schema.
func NewContactHandler(svc domain.ContactService, schema *Schema) *ContactHandler {
	if schema == nil {
		schema = NewSchema()
	}
	return &ContactHandler{svc: svc, schema: schema}
}

// List handles GET /api/v1/contacts.
func (h *ContactHandler) List(c *gin.Context) {
	page, err := h.svc.ListContacts(c.Request.Context(), pkg.ParseListQuery(c))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, page)
}

// Get handles GET /api/v1/contacts/:id.
func (h *ContactHandler) Get(c *gin.Context) {
	contact, err := h.svc.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, contact)
}

// Create handles POST /api/v1/contacts.
func (h *ContactHandler) Create(c *gin.Context) {
	var req ContactRequest
	if !pkg.BindJSON(c, &req) {
		return
	}
	in := req.Input()
	if errs := h.schema.ValidateForm(in); len(errs) > 0 {
		pkg.ValidationError(c, errs.Map())
		return
	}

	contact, err := h.svc.CreateContact(c.Request.Context(), in)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Created(c, contact)
}

// Update handles PUT /api/v1/contacts/:id.
func (h *ContactHandler) Update(c *gin.Context) {
	var req ContactRequest
	if !pkg.BindJSON(c, &req) {
		return
	}
	in := req.Input()
	if errs := h.schema.ValidateForm(in); len(errs) > 0 {
		pkg.ValidationError(c, errs.Map())
		return
	}

	contact, err := h.svc.UpdateContact(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, contact)
}

// Delete handles DELETE /api/v1/contacts/:id.
func (h *ContactHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, nil)
}

// Validate handles POST /api/v1/contacts/validate. It runs the same schema as
// the writes and reports every failing field without contacting the service.
func (h *ContactHandler) Validate(c *gin.Context) {
	var req ContactRequest
	if !pkg.BindJSON(c, &req) {
		return
	}
	if errs := h.schema.ValidateForm(req.Input()); len(errs) > 0 {
		pkg.ValidationError(c, errs.Map())
		return
	}
	pkg.Success(c, gin.H{"valid": true})
}
