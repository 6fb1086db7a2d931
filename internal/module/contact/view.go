package contact

import (
	"strings"

	"github.com/simp-lee/gocontacts/internal/domain"
	"github.com/simp-lee/gocontacts/internal/pkg"
)

// Form modes posted back by the browser.
const (
	modeCreate = "create"
	modeEdit   = "edit"
)

// formView is the template data of the contact form and its fragments.
type formView struct {
	Form        *Form
	Mode        string
	ContactID   string
	CSRFToken   string
	AvatarMaxMB int64
	Toasts      []pkg.Toast
	// Field is the field a validation fragment was rendered for.
	Field Field
	// OOB marks elements rendered as out-of-band swaps of a fragment response.
	OOB bool
}

func (v formView) IsEdit() bool {
	return v.Mode == modeEdit
}

// Title is the page heading.
func (v formView) Title() string {
	if v.IsEdit() {
		return "Edit User"
	}
	return "Add User"
}

func (v formView) SubmitLabel() string {
	if v.IsEdit() {
		return "Update Contact"
	}
	return "Create Contact"
}

// Action is the submit URL.
func (v formView) Action() string {
	if v.IsEdit() {
		return "/contacts/" + v.ContactID
	}
	return "/contacts"
}

// Touched is the touched set in its posted form.
func (v formView) Touched() string {
	fields := v.Form.TouchedFields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

// feedbackView is one field's error slot.
type feedbackView struct {
	Field   Field
	Message string
}

// Feedback returns the error slot for the named field.
func (v formView) Feedback(name string) feedbackView {
	f := Field(name)
	return feedbackView{Field: f, Message: v.Form.VisibleError(f)}
}

// FieldFeedback returns the error slot of the field a fragment was rendered for.
func (v formView) FieldFeedback() feedbackView {
	return v.Feedback(string(v.Field))
}

// Invalid reports whether the named field currently shows an error.
func (v formView) Invalid(name string) bool {
	return v.Form.VisibleError(Field(name)) != ""
}

// listView is the template data of the listing page and its fragments.
type listView struct {
	SessionID string
	State     DirectoryState
	CSRFToken string
	Toasts    []pkg.Toast
	OOB       bool
}

// Contacts returns the accumulated contacts.
func (v listView) Contacts() []domain.Contact {
	return v.State.Contacts
}

// detailView is the template data of the contact detail page.
type detailView struct {
	Contact   *domain.Contact
	CSRFToken string
	Toasts    []pkg.Toast
}
