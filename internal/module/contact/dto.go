package contact

import (
	"strings"

	"github.com/simp-lee/gocontacts/internal/domain"
)

// ContactRequest is the JSON body of the create and update API endpoints.
type ContactRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar"`
}

// Input converts the request into domain input.
func (r ContactRequest) Input() domain.ContactInput {
	return domain.ContactInput{Name: r.Name, Phone: r.Phone, Bio: r.Bio, Avatar: r.Avatar}
}

// FormRequest is the client-held state of a contact form, posted with every
// form event and with the final submit.
type FormRequest struct {
	Name        string `form:"name"`
	Phone       string `form:"phone"`
	Bio         string `form:"bio"`
	Avatar      string `form:"avatar"`
	Touched     string `form:"touched"`
	AvatarError string `form:"avatar_error"`
	PhoneError  string `form:"phone_error"`
	Mode        string `form:"mode"`
}

// Snapshot converts the posted state into a form snapshot. The touched set is
// a comma-separated list of field names; unknown names are ignored.
func (r FormRequest) Snapshot() Snapshot {
	var touched []Field
	for _, name := range strings.Split(r.Touched, ",") {
		if f, ok := ParseField(strings.TrimSpace(name)); ok {
			touched = append(touched, f)
		}
	}
	return Snapshot{
		Values: domain.ContactInput{
			Name:   r.Name,
			Phone:  r.Phone,
			Bio:    r.Bio,
			Avatar: r.Avatar,
		},
		Touched:     touched,
		AvatarError: r.AvatarError,
		PhoneError:  r.PhoneError,
	}
}

// FieldEventRequest is a single change or blur event on one form field.
type FieldEventRequest struct {
	FormRequest
	Field string `form:"field"`
	Event string `form:"event"`
}

// IsBlur reports whether the event is a focus loss rather than an edit.
func (r FieldEventRequest) IsBlur() bool {
	switch strings.ToLower(r.Event) {
	case "blur", "focusout":
		return true
	}
	return false
}
