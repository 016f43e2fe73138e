package apierrors

import (
	"errors"

	authprocessor "portal-server/internal/auth/processor"
	contactsprocessor "portal-server/internal/contacts/processor"
	customersprocessor "portal-server/internal/customers/processor"
	directadsprocessor "portal-server/internal/directads/processor"
	"portal-server/internal/docstore"
	eventsprocessor "portal-server/internal/events/processor"
	newslettersprocessor "portal-server/internal/newsletters/processor"
	noticesprocessor "portal-server/internal/notices/processor"
	polarlettersprocessor "portal-server/internal/polarletters/processor"
	pushprocessor "portal-server/internal/push/processor"
	"portal-server/internal/store"
	tenantprocessor "portal-server/internal/tenant/processor"
)

// MapError converts processor sentinels into APIErrors with the right
// HTTP status and code. Unrecognized errors become sanitized 500s.
func MapError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	// Tenant resolution and bindings.
	case errors.Is(err, tenantprocessor.ErrNoMatch):
		return NotFound(CodeTenantNotResolved, "no customer matched the request")
	case errors.Is(err, tenantprocessor.ErrCodeUnresolved):
		return Forbidden("customer code could not be resolved from the request")
	case errors.Is(err, tenantprocessor.ErrBindingNotFound):
		return NotFound(CodeNotFound, "binding not found")
	case errors.Is(err, tenantprocessor.ErrBindingExists):
		return Conflict(CodeInvalidInput, "a binding with that type and key already exists")
	case errors.Is(err, tenantprocessor.ErrUnknownBindingType):
		return BadRequest(CodeInvalidInput, "binding type must be APP or WEB")
	case errors.Is(err, tenantprocessor.ErrCustomerMissing):
		return NotFound(CodeCustomerNotFound, "customer not found")

	// Auth.
	case errors.Is(err, authprocessor.ErrInvalidCredentials):
		return Unauthorized("invalid credentials")
	case errors.Is(err, authprocessor.ErrInvalidToken):
		return Unauthorized("invalid token")
	case errors.Is(err, authprocessor.ErrExpiredToken):
		return Unauthorized("token expired")
	case errors.Is(err, authprocessor.ErrSignupSecretRequired):
		return Forbidden("a valid signup secret is required")
	case errors.Is(err, authprocessor.ErrUsernameExists):
		return Conflict(CodeUsernameExists, "username already exists")
	case errors.Is(err, authprocessor.ErrUserNotFound):
		return NotFound(CodeNotFound, "user not found")
	case errors.Is(err, authprocessor.ErrPasswordMismatch):
		return BadRequest(CodeInvalidInput, "current password does not match")
	case errors.Is(err, authprocessor.ErrPasswordLength):
		return BadRequest(CodeInvalidInput, "password must be between 8 and 72 characters")

	// Customers and settlements.
	case errors.Is(err, customersprocessor.ErrCustomerNotFound):
		return NotFound(CodeCustomerNotFound, "customer not found")
	case errors.Is(err, customersprocessor.ErrCustomerCodeExists):
		return Conflict(CodeCustomerCodeExists, "customer code already exists")
	case errors.Is(err, customersprocessor.ErrBlankCustomerCode):
		return BadRequest(CodeInvalidInput, "customer code must not be blank")

	// Security events.
	case errors.Is(err, eventsprocessor.ErrTenantNotResolved):
		return BadRequest(CodeTenantNotResolved, "request could not be matched to a customer")

	// Direct ads.
	case errors.Is(err, directadsprocessor.ErrAdNotFound):
		return NotFound(CodeAdNotFound, "ad not found")

	// CMS documents.
	case errors.Is(err, noticesprocessor.ErrNoticeNotFound),
		errors.Is(err, newslettersprocessor.ErrNewsletterNotFound),
		errors.Is(err, polarlettersprocessor.ErrLetterNotFound):
		return NotFound(CodeDocumentNotFound, "document not found")

	// Contacts.
	case errors.Is(err, contactsprocessor.ErrContactNotFound):
		return NotFound(CodeContactNotFound, "contact not found")
	case errors.Is(err, contactsprocessor.ErrCustomerNotFound):
		return NotFound(CodeCustomerNotFound, "customer not found")

	// Push vendor failures.
	case errors.Is(err, pushprocessor.ErrVendor):
		return BadGateway("push delivery failed", err)

	// Raw store sentinels that leaked past a processor.
	case errors.Is(err, store.ErrNotFound), errors.Is(err, docstore.ErrNotFound):
		return NotFound(CodeNotFound, "resource not found")
	case errors.Is(err, store.ErrDuplicate):
		return Conflict(CodeInvalidInput, "resource already exists")
	}

	return InternalError(err)
}
