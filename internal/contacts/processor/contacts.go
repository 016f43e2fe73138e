package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"portal-server/internal/observability"
	"portal-server/internal/store"
)

// ContactStore defines the database operations required by ContactProcessor
type ContactStore interface {
	UpsertContact(ctx context.Context, params store.UpsertContactParams) (store.Contact, error)
	GetContactByID(ctx context.Context, id int64) (store.Contact, error)
	ListContacts(ctx context.Context, customerCode, search string) ([]store.Contact, error)
	UpdateContact(ctx context.Context, id int64, params store.UpdateContactParams) (store.Contact, error)
	DeleteContact(ctx context.Context, id int64) error
	DeleteContactsByCustomer(ctx context.Context, customerCode string) (int64, error)
	FindContactByEmail(ctx context.Context, customerCode, email string) (store.Contact, error)
	FindPrimaryContact(ctx context.Context, customerCode string) (store.Contact, error)
	GetCustomerByCode(ctx context.Context, code string) (store.Customer, error)
	GetCustomerUserByID(ctx context.Context, id int64) (store.CustomerUser, error)
	CustomerUserExists(ctx context.Context, customerCode, username string) (bool, error)
	CreateCustomerUser(ctx context.Context, params store.CreateCustomerUserParams) (store.CustomerUser, error)
}

// MailSender delivers transactional mail.
type MailSender interface {
	SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error)
}

var (
	ErrContactNotFound  = errors.New("contact not found")
	ErrCustomerNotFound = errors.New("customer not found")
)

type ContactProcessor struct {
	store      ContactStore
	mailer     MailSender
	mailSender string
	logger     *observability.Logger
}

func New(store ContactStore, mailer MailSender, mailSender string, logger *observability.Logger) ContactProcessor {
	return ContactProcessor{
		store:      store,
		mailer:     mailer,
		mailSender: mailSender,
		logger:     logger,
	}
}

// UpsertContactRequest represents a request to create or update a contact
type UpsertContactRequest struct {
	CustomerCode  string
	Name          string
	Email         string
	Phone         *string
	Position      *string
	IsPrimary     bool
	Note          *string
	CreateAccount bool
}

// UpsertResult is the stored contact plus whether a portal account was
// provisioned in the same call.
type UpsertResult struct {
	Contact        store.Contact `json:"contact"`
	AccountCreated bool          `json:"accountCreated"`
}

// Upsert creates or updates the contact keyed by (customerCode, email).
// When account creation is requested and the customer has no account under
// the contact's email, one is provisioned with a generated password which
// is mailed to the contact. Mail failure is logged, never fatal.
func (p *ContactProcessor) Upsert(ctx context.Context, req UpsertContactRequest) (UpsertResult, error) {
	code := strings.ToLower(strings.TrimSpace(req.CustomerCode))
	ctx = observability.WithFields(ctx, observability.Field{Key: "customer_code", Value: code})

	customer, err := p.store.GetCustomerByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return UpsertResult{}, ErrCustomerNotFound
		}
		p.logger.Error(ctx, "failed to get customer", err)
		return UpsertResult{}, err
	}

	contact, err := p.store.UpsertContact(ctx, store.UpsertContactParams{
		CustomerCode: customer.Code,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Position:     req.Position,
		IsPrimary:    req.IsPrimary,
		Note:         req.Note,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to upsert contact", err)
		return UpsertResult{}, err
	}

	result := UpsertResult{Contact: contact}
	if req.CreateAccount {
		created, err := p.provisionAccount(ctx, customer, contact)
		if err != nil {
			p.logger.Error(ctx, "failed to provision portal account", err)
			return UpsertResult{}, err
		}
		result.AccountCreated = created
	}
	return result, nil
}

func (p *ContactProcessor) provisionAccount(ctx context.Context, customer store.Customer, contact store.Contact) (bool, error) {
	exists, err := p.store.CustomerUserExists(ctx, customer.Code, contact.Email)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	tempPassword := uuid.NewString()[:12]
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	email := contact.Email
	_, err = p.store.CreateCustomerUser(ctx, store.CreateCustomerUserParams{
		CustomerCode: customer.Code,
		Username:     contact.Email,
		PasswordHash: string(hash),
		Name:         contact.Name,
		Email:        &email,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}

	subject := fmt.Sprintf("Your %s portal account", customer.Name)
	body := fmt.Sprintf(
		"<p>Hello %s,</p><p>An account has been created for you on the %s portal.</p>"+
			"<p>Username: %s<br>Temporary password: %s</p>"+
			"<p>Please sign in and change your password.</p>",
		contact.Name, customer.Name, contact.Email, tempPassword)
	if _, err := p.mailer.SendEmail(ctx, p.mailSender, contact.Email, subject, body); err != nil {
		p.logger.WarnWithError(ctx, "failed to send initial password mail", err)
	}
	return true, nil
}

// GetContact fetches a contact by id.
func (p *ContactProcessor) GetContact(ctx context.Context, id int64) (store.Contact, error) {
	contact, err := p.store.GetContactByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Contact{}, ErrContactNotFound
		}
		p.logger.Error(ctx, "failed to get contact", err)
		return store.Contact{}, err
	}
	return contact, nil
}

// ListContacts returns contacts filtered by customer and search term.
func (p *ContactProcessor) ListContacts(ctx context.Context, customerCode, search string) ([]store.Contact, error) {
	contacts, err := p.store.ListContacts(ctx, strings.ToLower(strings.TrimSpace(customerCode)), strings.TrimSpace(search))
	if err != nil {
		p.logger.Error(ctx, "failed to list contacts", err)
		return nil, err
	}
	return contacts, nil
}

// DeleteContact removes a contact by id.
func (p *ContactProcessor) DeleteContact(ctx context.Context, id int64) error {
	if err := p.store.DeleteContact(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrContactNotFound
		}
		p.logger.Error(ctx, "failed to delete contact", err)
		return err
	}
	return nil
}

// DeleteByCustomer removes all of a customer's contacts.
func (p *ContactProcessor) DeleteByCustomer(ctx context.Context, customerCode string) (int64, error) {
	deleted, err := p.store.DeleteContactsByCustomer(ctx, strings.ToLower(customerCode))
	if err != nil {
		p.logger.Error(ctx, "failed to delete contacts by customer", err)
		return 0, err
	}
	return deleted, nil
}

// GetOwnContact resolves the calling customer user's contact record: the
// contact matching their account email, else the customer's primary one.
func (p *ContactProcessor) GetOwnContact(ctx context.Context, userID int64) (store.Contact, error) {
	user, err := p.store.GetCustomerUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Contact{}, ErrContactNotFound
		}
		p.logger.Error(ctx, "failed to get customer user", err)
		return store.Contact{}, err
	}

	if user.Email != nil && *user.Email != "" {
		contact, err := p.store.FindContactByEmail(ctx, user.CustomerCode, *user.Email)
		if err == nil {
			return contact, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Error(ctx, "failed to find contact by email", err)
			return store.Contact{}, err
		}
	}
	contact, err := p.store.FindPrimaryContact(ctx, user.CustomerCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Contact{}, ErrContactNotFound
		}
		p.logger.Error(ctx, "failed to find primary contact", err)
		return store.Contact{}, err
	}
	return contact, nil
}

// UpdateOwnContact applies a partial update to the caller's own contact.
func (p *ContactProcessor) UpdateOwnContact(ctx context.Context, userID int64, params store.UpdateContactParams) (store.Contact, error) {
	contact, err := p.GetOwnContact(ctx, userID)
	if err != nil {
		return store.Contact{}, err
	}
	updated, err := p.store.UpdateContact(ctx, contact.ID, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Contact{}, ErrContactNotFound
		}
		p.logger.Error(ctx, "failed to update contact", err)
		return store.Contact{}, err
	}
	return updated, nil
}
