package processor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"portal-server/internal/observability"
	"portal-server/internal/store"
)

type fakeContactStore struct {
	customers map[string]store.Customer
	contacts  map[int64]store.Contact
	users     map[string]store.CustomerUser
	usersByID map[int64]store.CustomerUser
	nextID    int64

	createdUser *store.CreateCustomerUserParams
}

func newFakeContactStore() *fakeContactStore {
	return &fakeContactStore{
		customers: make(map[string]store.Customer),
		contacts:  make(map[int64]store.Contact),
		users:     make(map[string]store.CustomerUser),
		usersByID: make(map[int64]store.CustomerUser),
		nextID:    1,
	}
}

func (f *fakeContactStore) UpsertContact(ctx context.Context, params store.UpsertContactParams) (store.Contact, error) {
	email := strings.ToLower(params.Email)
	for id, c := range f.contacts {
		if c.CustomerCode == params.CustomerCode && c.Email == email {
			c.Name = params.Name
			c.IsPrimary = params.IsPrimary
			f.contacts[id] = c
			return c, nil
		}
	}
	contact := store.Contact{
		ID:           f.nextID,
		CustomerCode: params.CustomerCode,
		Name:         params.Name,
		Email:        email,
		IsPrimary:    params.IsPrimary,
	}
	f.contacts[f.nextID] = contact
	f.nextID++
	return contact, nil
}

func (f *fakeContactStore) GetContactByID(ctx context.Context, id int64) (store.Contact, error) {
	if c, ok := f.contacts[id]; ok {
		return c, nil
	}
	return store.Contact{}, store.ErrNotFound
}

func (f *fakeContactStore) ListContacts(ctx context.Context, customerCode, search string) ([]store.Contact, error) {
	var out []store.Contact
	for _, c := range f.contacts {
		if customerCode != "" && c.CustomerCode != customerCode {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeContactStore) UpdateContact(ctx context.Context, id int64, params store.UpdateContactParams) (store.Contact, error) {
	c, ok := f.contacts[id]
	if !ok {
		return store.Contact{}, store.ErrNotFound
	}
	if params.Name != nil {
		c.Name = *params.Name
	}
	f.contacts[id] = c
	return c, nil
}

func (f *fakeContactStore) DeleteContact(ctx context.Context, id int64) error {
	if _, ok := f.contacts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.contacts, id)
	return nil
}

func (f *fakeContactStore) DeleteContactsByCustomer(ctx context.Context, customerCode string) (int64, error) {
	var deleted int64
	for id, c := range f.contacts {
		if c.CustomerCode == customerCode {
			delete(f.contacts, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeContactStore) FindContactByEmail(ctx context.Context, customerCode, email string) (store.Contact, error) {
	for _, c := range f.contacts {
		if c.CustomerCode == customerCode && c.Email == strings.ToLower(email) {
			return c, nil
		}
	}
	return store.Contact{}, store.ErrNotFound
}

func (f *fakeContactStore) FindPrimaryContact(ctx context.Context, customerCode string) (store.Contact, error) {
	for _, c := range f.contacts {
		if c.CustomerCode == customerCode && c.IsPrimary {
			return c, nil
		}
	}
	return store.Contact{}, store.ErrNotFound
}

func (f *fakeContactStore) GetCustomerByCode(ctx context.Context, code string) (store.Customer, error) {
	if customer, ok := f.customers[code]; ok {
		return customer, nil
	}
	return store.Customer{}, store.ErrNotFound
}

func (f *fakeContactStore) GetCustomerUserByID(ctx context.Context, id int64) (store.CustomerUser, error) {
	if u, ok := f.usersByID[id]; ok {
		return u, nil
	}
	return store.CustomerUser{}, store.ErrNotFound
}

func (f *fakeContactStore) CustomerUserExists(ctx context.Context, customerCode, username string) (bool, error) {
	_, ok := f.users[customerCode+"|"+strings.ToLower(username)]
	return ok, nil
}

func (f *fakeContactStore) CreateCustomerUser(ctx context.Context, params store.CreateCustomerUserParams) (store.CustomerUser, error) {
	key := params.CustomerCode + "|" + strings.ToLower(params.Username)
	if _, ok := f.users[key]; ok {
		return store.CustomerUser{}, store.ErrDuplicate
	}
	f.createdUser = &params
	user := store.CustomerUser{
		ID:           f.nextID,
		CustomerCode: params.CustomerCode,
		Username:     strings.ToLower(params.Username),
		PasswordHash: params.PasswordHash,
		Email:        params.Email,
	}
	f.users[key] = user
	f.usersByID[f.nextID] = user
	f.nextID++
	return user, nil
}

type fakeMailer struct {
	sent []string
	body string
	err  error
}

func (f *fakeMailer) SendEmail(ctx context.Context, from, to, subject, htmlContent string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, to)
	f.body = htmlContent
	return "mail-1", nil
}

func newTestContactProcessor(s *fakeContactStore, m *fakeMailer) ContactProcessor {
	return New(s, m, "portal@example.com", observability.NewLogger())
}

func TestUpsert_UnknownCustomer(t *testing.T) {
	proc := newTestContactProcessor(newFakeContactStore(), &fakeMailer{})

	_, err := proc.Upsert(context.Background(), UpsertContactRequest{
		CustomerCode: "ghost",
		Name:         "Kim",
		Email:        "kim@example.com",
	})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Errorf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestUpsert_ProvisionsAccountWithMailedPassword(t *testing.T) {
	fakeStore := newFakeContactStore()
	fakeStore.customers["acme"] = store.Customer{Code: "acme", Name: "Acme"}
	mailer := &fakeMailer{}
	proc := newTestContactProcessor(fakeStore, mailer)

	result, err := proc.Upsert(context.Background(), UpsertContactRequest{
		CustomerCode:  "ACME",
		Name:          "Kim",
		Email:         "kim@example.com",
		CreateAccount: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.AccountCreated {
		t.Error("expected account created")
	}
	if fakeStore.createdUser == nil || fakeStore.createdUser.CustomerCode != "acme" {
		t.Fatalf("expected user created for acme, got %+v", fakeStore.createdUser)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "kim@example.com" {
		t.Errorf("expected password mail to contact, got %v", mailer.sent)
	}
	// The mailed temp password must match the stored hash.
	start := strings.Index(mailer.body, "Temporary password: ")
	if start < 0 {
		t.Fatalf("expected temp password in mail body, got %q", mailer.body)
	}
	password := mailer.body[start+len("Temporary password: "):]
	password = password[:strings.Index(password, "<")]
	if err := bcrypt.CompareHashAndPassword([]byte(fakeStore.createdUser.PasswordHash), []byte(password)); err != nil {
		t.Errorf("mailed password does not match stored hash: %v", err)
	}
}

func TestUpsert_ExistingAccountNotRecreated(t *testing.T) {
	fakeStore := newFakeContactStore()
	fakeStore.customers["acme"] = store.Customer{Code: "acme", Name: "Acme"}
	fakeStore.users["acme|kim@example.com"] = store.CustomerUser{CustomerCode: "acme"}
	mailer := &fakeMailer{}
	proc := newTestContactProcessor(fakeStore, mailer)

	result, err := proc.Upsert(context.Background(), UpsertContactRequest{
		CustomerCode:  "acme",
		Name:          "Kim",
		Email:         "kim@example.com",
		CreateAccount: true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.AccountCreated {
		t.Error("expected no new account for existing user")
	}
	if len(mailer.sent) != 0 {
		t.Errorf("expected no mail, got %v", mailer.sent)
	}
}

func TestUpsert_MailFailureNotFatal(t *testing.T) {
	fakeStore := newFakeContactStore()
	fakeStore.customers["acme"] = store.Customer{Code: "acme", Name: "Acme"}
	proc := newTestContactProcessor(fakeStore, &fakeMailer{err: errors.New("resend down")})

	result, err := proc.Upsert(context.Background(), UpsertContactRequest{
		CustomerCode:  "acme",
		Name:          "Kim",
		Email:         "kim@example.com",
		CreateAccount: true,
	})
	if err != nil {
		t.Fatalf("expected mail failure swallowed, got %v", err)
	}
	if !result.AccountCreated {
		t.Error("expected account created despite mail failure")
	}
}

func TestGetOwnContact_EmailMatchBeatsPrimary(t *testing.T) {
	fakeStore := newFakeContactStore()
	email := "kim@example.com"
	fakeStore.usersByID[1] = store.CustomerUser{ID: 1, CustomerCode: "acme", Email: &email}
	fakeStore.contacts[10] = store.Contact{ID: 10, CustomerCode: "acme", Email: "other@example.com", IsPrimary: true}
	fakeStore.contacts[11] = store.Contact{ID: 11, CustomerCode: "acme", Email: "kim@example.com"}
	proc := newTestContactProcessor(fakeStore, &fakeMailer{})

	contact, err := proc.GetOwnContact(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if contact.ID != 11 {
		t.Errorf("expected own-email contact 11, got %d", contact.ID)
	}
}

func TestGetOwnContact_FallsBackToPrimary(t *testing.T) {
	fakeStore := newFakeContactStore()
	email := "nobody@example.com"
	fakeStore.usersByID[1] = store.CustomerUser{ID: 1, CustomerCode: "acme", Email: &email}
	fakeStore.contacts[10] = store.Contact{ID: 10, CustomerCode: "acme", Email: "other@example.com", IsPrimary: true}
	proc := newTestContactProcessor(fakeStore, &fakeMailer{})

	contact, err := proc.GetOwnContact(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if contact.ID != 10 {
		t.Errorf("expected primary contact 10, got %d", contact.ID)
	}
}

func TestDeleteByCustomer(t *testing.T) {
	fakeStore := newFakeContactStore()
	fakeStore.contacts[1] = store.Contact{ID: 1, CustomerCode: "acme"}
	fakeStore.contacts[2] = store.Contact{ID: 2, CustomerCode: "acme"}
	fakeStore.contacts[3] = store.Contact{ID: 3, CustomerCode: "beta"}
	proc := newTestContactProcessor(fakeStore, &fakeMailer{})

	deleted, err := proc.DeleteByCustomer(context.Background(), "ACME")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
	if _, ok := fakeStore.contacts[3]; !ok {
		t.Error("expected other customer's contact kept")
	}
}
