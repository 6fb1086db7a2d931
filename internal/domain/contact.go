package domain

import "context"

// ContactInput is the user-editable part of a contact.
type ContactInput struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Bio    string `json:"bio"`
	Avatar string `json:"avatar"`
}

// Contact is a contact record as stored by the contact service.
type Contact struct {
	BaseModel
	ContactInput
}

// Input returns the editable fields of c.
func (c *Contact) Input() ContactInput {
	if c == nil {
		return ContactInput{}
	}
	return c.ContactInput
}

// ContactPage is one page of a contact listing.
type ContactPage struct {
	Contacts   []Contact  `json:"contacts"`
	Pagination Pagination `json:"pagination"`
}

// ContactRepository is the boundary to the external contact service.
// Every method is a single request/response cycle without retries.
type ContactRepository interface {
	List(ctx context.Context, q ListQuery) (*ContactPage, error)
	GetByID(ctx context.Context, id string) (*Contact, error)
	Create(ctx context.Context, in ContactInput) (*Contact, error)
	Update(ctx context.Context, id string, in ContactInput) (*Contact, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// ContactService is the contact repository plus user-facing notifications:
// successful mutations and every failure are reported to a notification sink.
type ContactService interface {
	ListContacts(ctx context.Context, q ListQuery) (*ContactPage, error)
	GetContact(ctx context.Context, id string) (*Contact, error)
	CreateContact(ctx context.Context, in ContactInput) (*Contact, error)
	UpdateContact(ctx context.Context, id string, in ContactInput) (*Contact, error)
	DeleteContact(ctx context.Context, id string) error
}
