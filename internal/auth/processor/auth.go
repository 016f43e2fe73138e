package processor

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"portal-server/internal/observability"
	"portal-server/internal/store"
)

// AuthStore defines the database operations required by AuthProcessor
type AuthStore interface {
	CountAdminUsers(ctx context.Context) (int64, error)
	CreateAdminUser(ctx context.Context, params store.CreateAdminUserParams) (store.AdminUser, error)
	GetActiveAdminByUsername(ctx context.Context, username string) (store.AdminUser, error)
	GetAdminByID(ctx context.Context, id int64) (store.AdminUser, error)
	TouchAdminLastLogin(ctx context.Context, id int64) error
	GetActiveCustomerUser(ctx context.Context, customerCode, username string) (store.CustomerUser, error)
	GetCustomerUserByID(ctx context.Context, id int64) (store.CustomerUser, error)
	TouchCustomerUserLastLogin(ctx context.Context, id int64) error
	UpdateCustomerUserPassword(ctx context.Context, id int64, passwordHash string) error
	FindContactByEmail(ctx context.Context, customerCode, email string) (store.Contact, error)
	FindPrimaryContact(ctx context.Context, customerCode string) (store.Contact, error)
}

var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrUsernameExists       = errors.New("username already exists")
	ErrSignupSecretRequired = errors.New("signup secret required")
	ErrUserNotFound         = errors.New("user not found")
	ErrPasswordMismatch     = errors.New("current password does not match")
	ErrPasswordLength       = errors.New("password must be between 8 and 72 characters")
)

// Password bounds follow bcrypt's 72-byte input limit.
const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

// tokenTTL bounds how long an issued token stays valid.
var tokenTTL = 24 * time.Hour

type AuthProcessor struct {
	store        AuthStore
	jwtSecret    string
	signupSecret string
	logger       *observability.Logger
}

func New(store AuthStore, jwtSecret, signupSecret string, logger *observability.Logger) AuthProcessor {
	return AuthProcessor{
		store:        store,
		jwtSecret:    jwtSecret,
		signupSecret: signupSecret,
		logger:       logger,
	}
}

// AdminSignupRequest represents a request to create an admin account
type AdminSignupRequest struct {
	Username     string
	Password     string
	Name         string
	SignupSecret string
}

// AdminSignup creates a back-office account. The very first account needs
// no secret and is forced to the ADMIN role; every later signup must
// present the configured signup secret and lands as EDITOR.
func (p *AuthProcessor) AdminSignup(ctx context.Context, req AdminSignupRequest) (store.AdminUser, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "username", Value: req.Username})

	count, err := p.store.CountAdminUsers(ctx)
	if err != nil {
		p.logger.Error(ctx, "failed to count admin users", err)
		return store.AdminUser{}, err
	}

	role := store.RoleEditor
	if count == 0 {
		role = store.RoleAdmin
	} else if p.signupSecret == "" || req.SignupSecret != p.signupSecret {
		return store.AdminUser{}, ErrSignupSecretRequired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		p.logger.Error(ctx, "failed to hash password", err)
		return store.AdminUser{}, err
	}

	user, err := p.store.CreateAdminUser(ctx, store.CreateAdminUserParams{
		Username:     req.Username,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return store.AdminUser{}, ErrUsernameExists
		}
		p.logger.Error(ctx, "failed to create admin user", err)
		return store.AdminUser{}, err
	}

	p.logger.Info(observability.WithFields(ctx, observability.Field{Key: "role", Value: role}), "admin user created")
	return user, nil
}

// LoggedInUser is an authentication result with a signed token.
type LoggedInUser struct {
	Token        string `json:"token"`
	UserType     string `json:"userType"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Role         string `json:"role,omitempty"`
	CustomerCode string `json:"customerCode,omitempty"`
}

// AdminLogin authenticates an admin account. Unknown usernames and wrong
// passwords are indistinguishable to the caller.
func (p *AuthProcessor) AdminLogin(ctx context.Context, username, password string) (LoggedInUser, error) {
	user, err := p.store.GetActiveAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoggedInUser{}, ErrInvalidCredentials
		}
		p.logger.Error(ctx, "failed to get admin user", err)
		return LoggedInUser{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return LoggedInUser{}, ErrInvalidCredentials
	}

	if err := p.store.TouchAdminLastLogin(ctx, user.ID); err != nil {
		p.logger.WarnWithError(ctx, "failed to record admin last login", err)
	}

	token, err := p.generateToken(ctx, Claims{
		UserID:   user.ID,
		UserType: UserTypeAdmin,
		Role:     user.Role,
	})
	if err != nil {
		return LoggedInUser{}, err
	}
	return LoggedInUser{
		Token:    token,
		UserType: UserTypeAdmin,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
	}, nil
}

// CustomerLogin authenticates a customer-portal account scoped to its
// customer code.
func (p *AuthProcessor) CustomerLogin(ctx context.Context, customerCode, username, password string) (LoggedInUser, error) {
	user, err := p.store.GetActiveCustomerUser(ctx, customerCode, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoggedInUser{}, ErrInvalidCredentials
		}
		p.logger.Error(ctx, "failed to get customer user", err)
		return LoggedInUser{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return LoggedInUser{}, ErrInvalidCredentials
	}

	if err := p.store.TouchCustomerUserLastLogin(ctx, user.ID); err != nil {
		p.logger.WarnWithError(ctx, "failed to record customer last login", err)
	}

	token, err := p.generateToken(ctx, Claims{
		UserID:       user.ID,
		UserType:     UserTypeCustomer,
		CustomerCode: user.CustomerCode,
	})
	if err != nil {
		return LoggedInUser{}, err
	}
	return LoggedInUser{
		Token:        token,
		UserType:     UserTypeCustomer,
		Username:     user.Username,
		Name:         user.Name,
		CustomerCode: user.CustomerCode,
	}, nil
}

// GetAdminProfile fetches the authenticated admin's profile.
func (p *AuthProcessor) GetAdminProfile(ctx context.Context, userID int64) (store.AdminUser, error) {
	user, err := p.store.GetAdminByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.AdminUser{}, ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to get admin user", err)
		return store.AdminUser{}, err
	}
	return user, nil
}

// CustomerProfile is a customer user enriched with their contact record.
type CustomerProfile struct {
	User    store.CustomerUser `json:"user"`
	Contact *store.Contact     `json:"contact,omitempty"`
}

// GetCustomerProfile fetches the authenticated customer user and attaches
// the contact whose email matches theirs, else the customer's primary
// contact. A missing contact is not an error.
func (p *AuthProcessor) GetCustomerProfile(ctx context.Context, userID int64) (CustomerProfile, error) {
	user, err := p.store.GetCustomerUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return CustomerProfile{}, ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to get customer user", err)
		return CustomerProfile{}, err
	}

	profile := CustomerProfile{User: user}
	var contact store.Contact
	err = store.ErrNotFound
	if user.Email != nil && *user.Email != "" {
		contact, err = p.store.FindContactByEmail(ctx, user.CustomerCode, *user.Email)
	}
	if errors.Is(err, store.ErrNotFound) {
		contact, err = p.store.FindPrimaryContact(ctx, user.CustomerCode)
	}
	if err == nil {
		profile.Contact = &contact
	} else if !errors.Is(err, store.ErrNotFound) {
		p.logger.WarnWithError(ctx, "failed to load contact for profile", err)
	}
	return profile, nil
}

// ChangeCustomerPassword verifies the current password and replaces it.
func (p *AuthProcessor) ChangeCustomerPassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength || len(newPassword) > maxPasswordLength {
		return ErrPasswordLength
	}
	user, err := p.store.GetCustomerUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		p.logger.Error(ctx, "failed to get customer user", err)
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrPasswordMismatch
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		p.logger.Error(ctx, "failed to hash password", err)
		return err
	}
	if err := p.store.UpdateCustomerUserPassword(ctx, userID, string(hash)); err != nil {
		p.logger.Error(ctx, "failed to update password", err)
		return err
	}
	p.logger.Info(observability.WithFields(ctx,
		observability.Field{Key: "user_id", Value: userID}), "customer password changed")
	return nil
}
