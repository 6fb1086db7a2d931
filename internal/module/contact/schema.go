package contact

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/simp-lee/gocontacts/internal/domain"
)

// Field identifies one editable contact field.
type Field string

// Contact form fields.
const (
	FieldName   Field = "name"
	FieldPhone  Field = "phone"
	FieldBio    Field = "bio"
	FieldAvatar Field = "avatar"
)

// Fields lists every schema-declared field in display order.
var Fields = []Field{FieldName, FieldPhone, FieldBio, FieldAvatar}

// ParseField converts a raw field name into a Field.
func ParseField(s string) (Field, bool) {
	f := Field(s)
	if _, ok := rules[f]; ok {
		return f, true
	}
	return "", false
}

// Value returns the value of field f in in.
func (f Field) Value(in domain.ContactInput) string {
	switch f {
	case FieldName:
		return in.Name
	case FieldPhone:
		return in.Phone
	case FieldBio:
		return in.Bio
	case FieldAvatar:
		return in.Avatar
	default:
		return ""
	}
}

// set stores value into field f of in.
func (f Field) set(in *domain.ContactInput, value string) {
	switch f {
	case FieldName:
		in.Name = value
	case FieldPhone:
		in.Phone = value
	case FieldBio:
		in.Bio = value
	case FieldAvatar:
		in.Avatar = value
	}
}

// phonePattern accepts an optional "+" country code of 1-3 digits, an
// optional parenthesized area code, and 3-3-4 digit groups separated by
// space, dot or hyphen.
var phonePattern = regexp.MustCompile(`^(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}$`)

// rule is the validator tag for one field plus the message for each tag that can fail.
type rule struct {
	tag      string
	messages map[string]string
}

// rules is the single source of truth for both per-field and whole-form validation.
var rules = map[Field]rule{
	FieldName: {
		tag: "required,max=100",
		messages: map[string]string{
			"required": "Name is required",
			"max":      "Name must be less than 100 characters",
		},
	},
	FieldPhone: {
		tag: "required,phone",
		messages: map[string]string{
			"required": "Phone number is required",
			"phone":    "Invalid phone number format",
		},
	},
	FieldBio: {
		tag: "max=500",
		messages: map[string]string{
			"max": "Bio must be less than 500 characters",
		},
	},
	FieldAvatar: {},
}

// FieldErrors maps a field to its validation message. An empty map means valid.
type FieldErrors map[Field]string

// Map returns the errors keyed by plain field name, for JSON responses.
func (e FieldErrors) Map() map[string]string {
	m := make(map[string]string, len(e))
	for f, msg := range e {
		m[string(f)] = msg
	}
	return m
}

// Schema validates contact input. It is safe for concurrent use.
type Schema struct {
	validate *validator.Validate
}

// NewSchema creates a Schema with the phone rule registered.
func NewSchema() *Schema {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("contact.NewSchema: register phone validation: " + err.Error())
	}
	return &Schema{validate: v}
}

// ValidateField returns the error message for value in field f, or "" if it is valid.
// Unknown fields are always valid.
func (s *Schema) ValidateField(f Field, value string) string {
	r, ok := rules[f]
	if !ok || r.tag == "" {
		return ""
	}

	err := s.validate.Var(value, r.tag)
	if err == nil {
		return ""
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		if msg, ok := r.messages[ve[0].Tag()]; ok {
			return msg
		}
	}
	return "Invalid value"
}

// ValidateForm validates every field of in and returns the failing ones.
func (s *Schema) ValidateForm(in domain.ContactInput) FieldErrors {
	errs := FieldErrors{}
	for _, f := range Fields {
		if msg := s.ValidateField(f, f.Value(in)); msg != "" {
			errs[f] = msg
		}
	}
	return errs
}
