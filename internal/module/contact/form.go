package contact

import (
	"context"
	"errors"
	"strings"

	"github.com/simp-lee/gocontacts/internal/domain"
)

// FormState is the lifecycle state of a contact form.
type FormState int

const (
	StatePristine FormState = iota
	StateEditing
	StateSubmitting
	StateSubmitted
)

func (s FormState) String() string {
	switch s {
	case StatePristine:
		return "pristine"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidForm is returned by Submit when local validation fails. No
	// submit call is made in that case.
	ErrInvalidForm = errors.New("contact form has validation errors")
	// ErrSubmitInProgress is returned by Submit while a previous submit is in flight.
	ErrSubmitInProgress = errors.New("contact form is already submitting")
)

const fallbackSubmitError = "Failed to submit form"

// SubmitFunc performs the create or update behind a form submit.
type SubmitFunc func(ctx context.Context, in domain.ContactInput) error

// Form tracks the values, touched fields, field errors and submit error of
// one contact form. A Form is owned by a single goroutine.
type Form struct {
	schema *Schema

	Values      domain.ContactInput
	Errors      FieldErrors
	SubmitError string

	touched map[Field]bool
	state   FormState
}

// NewForm creates a pristine form, seeded from initial when it is non-nil.
func NewForm(schema *Schema, initial *domain.Contact) *Form {
	if schema == nil {
		schema = NewSchema()
	}
	return &Form{
		schema:  schema,
		Values:  initial.Input(),
		Errors:  FieldErrors{},
		touched: make(map[Field]bool, len(Fields)),
		state:   StatePristine,
	}
}

// Snapshot is the client-held part of a form posted back with every event.
type Snapshot struct {
	Values      domain.ContactInput
	Touched     []Field
	AvatarError string
	// PhoneError is a phone error reported by the contact service. It stays
	// until the phone field itself is edited or blurred.
	PhoneError string
}

// RestoreForm rebuilds a form from a snapshot. Touched fields are
// re-validated so their errors match their current values.
func RestoreForm(schema *Schema, snap Snapshot) *Form {
	f := NewForm(schema, nil)
	f.Values = snap.Values
	for _, field := range snap.Touched {
		if _, ok := rules[field]; !ok {
			continue
		}
		f.touched[field] = true
		f.validate(field)
	}
	if snap.AvatarError != "" {
		f.Errors[FieldAvatar] = snap.AvatarError
	}
	if snap.PhoneError != "" && f.Errors[FieldPhone] == "" {
		f.touched[FieldPhone] = true
		f.Errors[FieldPhone] = snap.PhoneError
	}
	if len(f.touched) > 0 {
		f.state = StateEditing
	}
	return f
}

// State returns the current lifecycle state.
func (f *Form) State() FormState {
	return f.state
}

// Touched reports whether field has been blurred or submitted.
func (f *Form) Touched(field Field) bool {
	return f.touched[field]
}

// TouchedFields returns the touched fields in display order.
func (f *Form) TouchedFields() []Field {
	out := make([]Field, 0, len(f.touched))
	for _, field := range Fields {
		if f.touched[field] {
			out = append(out, field)
		}
	}
	return out
}

// Change updates the value of field. A touched field is re-validated
// immediately; untouched fields stay quiet until their first blur.
func (f *Form) Change(field Field, value string) {
	if _, ok := rules[field]; !ok {
		return
	}
	field.set(&f.Values, value)
	if f.touched[field] {
		f.validate(field)
	}
}

// Blur marks field as touched and re-validates it.
func (f *Form) Blur(field Field) {
	if _, ok := rules[field]; !ok {
		return
	}
	f.touch(field)
	f.validate(field)
}

// VisibleError returns the error to show for field. Errors of untouched
// fields are hidden, except for the avatar whose errors come from ingestion.
func (f *Form) VisibleError(field Field) string {
	if field != FieldAvatar && !f.touched[field] {
		return ""
	}
	return f.Errors[field]
}

// RejectedPhone returns the phone error when it did not come from the schema,
// that is when the contact service rejected the phone number.
func (f *Form) RejectedPhone() string {
	msg := f.Errors[FieldPhone]
	if msg == "" || msg == f.schema.ValidateField(FieldPhone, f.Values.Phone) {
		return ""
	}
	return msg
}

// CanSubmit reports whether the submit button should be enabled: name and
// phone are filled in and no field has an error.
func (f *Form) CanSubmit() bool {
	if f.state == StateSubmitting {
		return false
	}
	filled := strings.TrimSpace(f.Values.Name) != "" && strings.TrimSpace(f.Values.Phone) != ""
	return filled && len(f.Errors) == 0
}

// Submit touches every field and validates the whole form. When valid it
// calls submit with the current values. A failed submit records the error
// message, mirrors phone-related messages onto the phone field, and returns
// the original error.
func (f *Form) Submit(ctx context.Context, submit SubmitFunc) error {
	if f.state == StateSubmitting {
		return ErrSubmitInProgress
	}
	f.SubmitError = ""

	for _, field := range Fields {
		f.touch(field)
	}

	f.Errors = f.schema.ValidateForm(f.Values)
	if len(f.Errors) > 0 {
		return ErrInvalidForm
	}

	f.state = StateSubmitting
	err := submit(ctx, f.Values)
	if err == nil {
		f.state = StateSubmitted
		return nil
	}

	f.state = StateEditing
	msg := domain.Message(err, err.Error())
	if strings.TrimSpace(msg) == "" {
		msg = fallbackSubmitError
	}
	f.SubmitError = msg
	if strings.Contains(strings.ToLower(msg), "phone") {
		f.Errors[FieldPhone] = msg
		f.touch(FieldPhone)
	}
	return err
}

// SetAvatar stores an ingested avatar and clears any avatar error.
func (f *Form) SetAvatar(dataURL string) {
	f.Values.Avatar = dataURL
	delete(f.Errors, FieldAvatar)
}

// SetAvatarError records an avatar error without changing the stored avatar.
func (f *Form) SetAvatarError(msg string) {
	f.Errors[FieldAvatar] = msg
}

// DropAvatar ingests the files of one drop or selection event into the
// avatar field. An empty drop is ignored. A cancelled ingestion leaves the
// form untouched.
func (f *Form) DropAvatar(ctx context.Context, ing *AvatarIngestor, files []ImageFile) error {
	if len(files) == 0 {
		return nil
	}
	dataURL, err := ing.Ingest(ctx, files)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		f.SetAvatarError(ing.Message(err))
		return err
	}
	f.SetAvatar(dataURL)
	return nil
}

func (f *Form) touch(field Field) {
	f.touched[field] = true
	if f.state == StatePristine {
		f.state = StateEditing
	}
}

func (f *Form) validate(field Field) {
	if msg := f.schema.ValidateField(field, field.Value(f.Values)); msg != "" {
		f.Errors[field] = msg
		return
	}
	delete(f.Errors, field)
}
