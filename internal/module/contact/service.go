package contact

import (
	"context"

	"github.com/simp-lee/gocontacts/internal/domain"
	"github.com/simp-lee/gocontacts/internal/notify"
)

// contactService implements domain.ContactService. Successful mutations and
// every failure are reported to the notification sink.
type contactService struct {
	repo domain.ContactRepository
	sink notify.Sink
}

// NewContactService creates a ContactService over repo that reports to sink.
// A nil sink discards notifications.
func NewContactService(repo domain.ContactRepository, sink notify.Sink) domain.ContactService {
	if sink == nil {
		sink = notify.Discard
	}
	return &contactService{repo: repo, sink: sink}
}

// ListContacts returns one page of contacts.
func (s *contactService) ListContacts(ctx context.Context, q domain.ListQuery) (*domain.ContactPage, error) {
	page, err := s.repo.List(ctx, q)
	if err != nil {
		s.fail(ctx, err, "Failed to load contacts")
		return nil, err
	}
	return page, nil
}

// GetContact returns a single contact.
func (s *contactService) GetContact(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.fail(ctx, err, "Failed to load contact")
		return nil, err
	}
	return c, nil
}

// CreateContact creates a contact.
func (s *contactService) CreateContact(ctx context.Context, in domain.ContactInput) (*domain.Contact, error) {
	c, err := s.repo.Create(ctx, in)
	if err != nil {
		s.fail(ctx, err, "Failed to create contact")
		return nil, err
	}
	s.sink.Notify(ctx, notify.Success("Contact created successfully"))
	return c, nil
}

// UpdateContact updates a contact.
func (s *contactService) UpdateContact(ctx context.Context, id string, in domain.ContactInput) (*domain.Contact, error) {
	c, err := s.repo.Update(ctx, id, in)
	if err != nil {
		s.fail(ctx, err, "Failed to update contact")
		return nil, err
	}
	s.sink.Notify(ctx, notify.Success("Contact updated successfully"))
	return c, nil
}

// DeleteContact deletes a contact.
func (s *contactService) DeleteContact(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		s.fail(ctx, err, "Failed to delete contact")
		return err
	}
	s.sink.Notify(ctx, notify.Success("Contact deleted successfully"))
	return nil
}

func (s *contactService) fail(ctx context.Context, err error, fallback string) {
	if notify.Skip(err) {
		return
	}
	s.sink.Notify(ctx, notify.Failure(domain.Message(err, fallback)))
}
