package processor

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"portal-server/internal/observability"
	"portal-server/internal/store"
)

// fakeAuthStore keeps accounts in memory.
type fakeAuthStore struct {
	admins        map[string]store.AdminUser
	customerUsers map[int64]store.CustomerUser
	contacts      map[string]store.Contact
	primary       map[string]store.Contact

	nextID          int64
	updatedPassword string
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		admins:        make(map[string]store.AdminUser),
		customerUsers: make(map[int64]store.CustomerUser),
		contacts:      make(map[string]store.Contact),
		primary:       make(map[string]store.Contact),
	}
}

func (f *fakeAuthStore) CountAdminUsers(ctx context.Context) (int64, error) {
	return int64(len(f.admins)), nil
}

func (f *fakeAuthStore) CreateAdminUser(ctx context.Context, params store.CreateAdminUserParams) (store.AdminUser, error) {
	if _, ok := f.admins[params.Username]; ok {
		return store.AdminUser{}, store.ErrDuplicate
	}
	f.nextID++
	user := store.AdminUser{
		ID:           f.nextID,
		Username:     params.Username,
		PasswordHash: params.PasswordHash,
		Name:         params.Name,
		Role:         params.Role,
		IsActive:     true,
	}
	f.admins[params.Username] = user
	return user, nil
}

func (f *fakeAuthStore) GetActiveAdminByUsername(ctx context.Context, username string) (store.AdminUser, error) {
	if user, ok := f.admins[username]; ok {
		return user, nil
	}
	return store.AdminUser{}, store.ErrNotFound
}

func (f *fakeAuthStore) GetAdminByID(ctx context.Context, id int64) (store.AdminUser, error) {
	for _, user := range f.admins {
		if user.ID == id {
			return user, nil
		}
	}
	return store.AdminUser{}, store.ErrNotFound
}

func (f *fakeAuthStore) TouchAdminLastLogin(ctx context.Context, id int64) error { return nil }

func (f *fakeAuthStore) GetActiveCustomerUser(ctx context.Context, customerCode, username string) (store.CustomerUser, error) {
	for _, user := range f.customerUsers {
		if user.CustomerCode == customerCode && user.Username == username {
			return user, nil
		}
	}
	return store.CustomerUser{}, store.ErrNotFound
}

func (f *fakeAuthStore) GetCustomerUserByID(ctx context.Context, id int64) (store.CustomerUser, error) {
	if user, ok := f.customerUsers[id]; ok {
		return user, nil
	}
	return store.CustomerUser{}, store.ErrNotFound
}

func (f *fakeAuthStore) TouchCustomerUserLastLogin(ctx context.Context, id int64) error { return nil }

func (f *fakeAuthStore) UpdateCustomerUserPassword(ctx context.Context, id int64, passwordHash string) error {
	user, ok := f.customerUsers[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.customerUsers[id] = user
	f.updatedPassword = passwordHash
	return nil
}

func (f *fakeAuthStore) FindContactByEmail(ctx context.Context, customerCode, email string) (store.Contact, error) {
	if contact, ok := f.contacts[customerCode+"|"+email]; ok {
		return contact, nil
	}
	return store.Contact{}, store.ErrNotFound
}

func (f *fakeAuthStore) FindPrimaryContact(ctx context.Context, customerCode string) (store.Contact, error) {
	if contact, ok := f.primary[customerCode]; ok {
		return contact, nil
	}
	return store.Contact{}, store.ErrNotFound
}

func newTestAuthProcessor(s AuthStore, signupSecret string) AuthProcessor {
	return New(s, "test-secret", signupSecret, observability.NewLogger())
}

func TestAdminSignup_FirstUserBecomesAdmin(t *testing.T) {
	proc := newTestAuthProcessor(newFakeAuthStore(), "letmein")

	user, err := proc.AdminSignup(context.Background(), AdminSignupRequest{
		Username: "root",
		Password: "password123",
		Name:     "First Admin",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Role != store.RoleAdmin {
		t.Errorf("expected first user role ADMIN, got %s", user.Role)
	}
}

func TestAdminSignup_LaterUsersNeedSecret(t *testing.T) {
	fakeStore := newFakeAuthStore()
	proc := newTestAuthProcessor(fakeStore, "letmein")

	if _, err := proc.AdminSignup(context.Background(), AdminSignupRequest{Username: "root", Password: "password123"}); err != nil {
		t.Fatalf("bootstrap signup failed: %v", err)
	}

	_, err := proc.AdminSignup(context.Background(), AdminSignupRequest{Username: "second", Password: "password123"})
	if !errors.Is(err, ErrSignupSecretRequired) {
		t.Fatalf("expected ErrSignupSecretRequired, got %v", err)
	}

	user, err := proc.AdminSignup(context.Background(), AdminSignupRequest{
		Username:     "second",
		Password:     "password123",
		SignupSecret: "letmein",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Role != store.RoleEditor {
		t.Errorf("expected later user role EDITOR, got %s", user.Role)
	}
}

func TestAdminSignup_NoSecretConfigured(t *testing.T) {
	fakeStore := newFakeAuthStore()
	proc := newTestAuthProcessor(fakeStore, "")

	if _, err := proc.AdminSignup(context.Background(), AdminSignupRequest{Username: "root", Password: "password123"}); err != nil {
		t.Fatalf("bootstrap signup failed: %v", err)
	}

	// With no secret configured, later signups are closed entirely.
	_, err := proc.AdminSignup(context.Background(), AdminSignupRequest{Username: "second", Password: "password123"})
	if !errors.Is(err, ErrSignupSecretRequired) {
		t.Errorf("expected ErrSignupSecretRequired, got %v", err)
	}
}

func TestAdminSignup_DuplicateUsername(t *testing.T) {
	proc := newTestAuthProcessor(newFakeAuthStore(), "letmein")

	if _, err := proc.AdminSignup(context.Background(), AdminSignupRequest{Username: "root", Password: "password123"}); err != nil {
		t.Fatalf("bootstrap signup failed: %v", err)
	}
	_, err := proc.AdminSignup(context.Background(), AdminSignupRequest{
		Username:     "root",
		Password:     "password123",
		SignupSecret: "letmein",
	})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
}

func TestAdminLogin_TokenRoundTrip(t *testing.T) {
	fakeStore := newFakeAuthStore()
	proc := newTestAuthProcessor(fakeStore, "")
	ctx := context.Background()

	if _, err := proc.AdminSignup(ctx, AdminSignupRequest{Username: "root", Password: "password123", Name: "Root"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	result, err := proc.AdminLogin(ctx, "root", "password123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.UserType != UserTypeAdmin || result.Role != store.RoleAdmin {
		t.Errorf("unexpected login result: %+v", result)
	}

	claims, err := proc.ValidateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if claims.UserType != UserTypeAdmin || claims.UserID == 0 {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAdminLogin_InvalidCredentials(t *testing.T) {
	fakeStore := newFakeAuthStore()
	proc := newTestAuthProcessor(fakeStore, "")
	ctx := context.Background()

	if _, err := proc.AdminSignup(ctx, AdminSignupRequest{Username: "root", Password: "password123"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	if _, err := proc.AdminLogin(ctx, "root", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := proc.AdminLogin(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestCustomerLogin(t *testing.T) {
	fakeStore := newFakeAuthStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	fakeStore.customerUsers[7] = store.CustomerUser{
		ID:           7,
		CustomerCode: "acme",
		Username:     "user@acme.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	proc := newTestAuthProcessor(fakeStore, "")
	ctx := context.Background()

	result, err := proc.CustomerLogin(ctx, "acme", "user@acme.com", "password123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.CustomerCode != "acme" || result.UserType != UserTypeCustomer {
		t.Errorf("unexpected login result: %+v", result)
	}

	claims, err := proc.ValidateToken(ctx, result.Token)
	if err != nil {
		t.Fatalf("token did not validate: %v", err)
	}
	if claims.CustomerCode != "acme" {
		t.Errorf("expected customerCode acme in claims, got %q", claims.CustomerCode)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	fakeStore := newFakeAuthStore()
	issuer := newTestAuthProcessor(fakeStore, "")
	ctx := context.Background()

	if _, err := issuer.AdminSignup(ctx, AdminSignupRequest{Username: "root", Password: "password123"}); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	result, err := issuer.AdminLogin(ctx, "root", "password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	other := New(fakeStore, "different-secret", "", observability.NewLogger())
	if _, err := other.ValidateToken(ctx, result.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestChangeCustomerPassword(t *testing.T) {
	fakeStore := newFakeAuthStore()
	hash, _ := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.DefaultCost)
	fakeStore.customerUsers[3] = store.CustomerUser{
		ID:           3,
		CustomerCode: "acme",
		PasswordHash: string(hash),
		IsActive:     true,
	}
	proc := newTestAuthProcessor(fakeStore, "")
	ctx := context.Background()

	if err := proc.ChangeCustomerPassword(ctx, 3, "old-password", "short"); !errors.Is(err, ErrPasswordLength) {
		t.Errorf("expected ErrPasswordLength, got %v", err)
	}
	if err := proc.ChangeCustomerPassword(ctx, 3, "wrong", "new-password-1"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("expected ErrPasswordMismatch, got %v", err)
	}

	if err := proc.ChangeCustomerPassword(ctx, 3, "old-password", "new-password-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(fakeStore.updatedPassword), []byte("new-password-1")) != nil {
		t.Error("stored hash does not match the new password")
	}
}

func TestGetCustomerProfile_ContactFallback(t *testing.T) {
	fakeStore := newFakeAuthStore()
	email := "user@acme.com"
	fakeStore.customerUsers[5] = store.CustomerUser{
		ID:           5,
		CustomerCode: "acme",
		Email:        &email,
		IsActive:     true,
	}
	fakeStore.primary["acme"] = store.Contact{ID: 11, CustomerCode: "acme", Email: "primary@acme.com"}
	proc := newTestAuthProcessor(fakeStore, "")

	profile, err := proc.GetCustomerProfile(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.Contact == nil || profile.Contact.ID != 11 {
		t.Fatalf("expected primary contact fallback, got %+v", profile.Contact)
	}

	fakeStore.contacts["acme|"+email] = store.Contact{ID: 12, CustomerCode: "acme", Email: email}
	profile, err = proc.GetCustomerProfile(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if profile.Contact == nil || profile.Contact.ID != 12 {
		t.Fatalf("expected email-matched contact, got %+v", profile.Contact)
	}
}
