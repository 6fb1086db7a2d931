package contact

import "github.com/gin-gonic/gin"

// ContactModule implements the app.Module interface for the contact domain.
type ContactModule struct {
	handler     *ContactHandler
	pageHandler *ContactPageHandler
}

// NewModule creates a new ContactModule with the given handlers.
// Panics if h or ph is nil.
func NewModule(h *ContactHandler, ph *ContactPageHandler) *ContactModule {
	if h == nil {
		panic("contact.NewModule: handler must not be nil")
	}
	if ph == nil {
		panic("contact.NewModule: pageHandler must not be nil")
	}
	return &ContactModule{handler: h, pageHandler: ph}
}

// RegisterRoutes registers contact API and page routes.
func (m *ContactModule) RegisterRoutes(api *gin.RouterGroup, pages *gin.RouterGroup) {
	// API routes
	api.GET("/contacts", m.handler.List)
	api.POST("/contacts", m.handler.Create)
	api.POST("/contacts/validate", m.handler.Validate)
	api.GET("/contacts/:id", m.handler.Get)
	api.PUT("/contacts/:id", m.handler.Update)
	api.DELETE("/contacts/:id", m.handler.Delete)

	// Page routes
	pages.GET("/contacts", m.pageHandler.ListPage)
	pages.GET("/contacts/browse/:sid/search", m.pageHandler.Search)
	pages.POST("/contacts/browse/:sid/more", m.pageHandler.LoadMore)
	pages.GET("/contacts/new", m.pageHandler.NewPage)
	pages.POST("/contacts", m.pageHandler.CreateHTMX)
	pages.POST("/contacts/form/validate", m.pageHandler.ValidateField)
	pages.POST("/contacts/form/avatar", m.pageHandler.UploadAvatar)
	pages.GET("/contacts/:id", m.pageHandler.ViewPage)
	pages.GET("/contacts/:id/edit", m.pageHandler.EditPage)
	pages.PUT("/contacts/:id", m.pageHandler.UpdateHTMX)
	pages.DELETE("/contacts/:id", m.pageHandler.DeleteHTMX)
}
