package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func adminUserColumns() []string {
	return []string{"id", "username", "password_hash", "name", "role", "is_active", "last_login_at", "created_at", "updated_at"}
}

func TestCreateAdminUser_DuplicateUsername(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO admin_users`).
		WithArgs("admin", "hash", "Admin", RoleAdmin).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "admin_users_username_key"})

	_, err := s.CreateAdminUser(context.Background(), CreateAdminUserParams{
		Username:     "admin",
		PasswordHash: "hash",
		Name:         "Admin",
		Role:         RoleAdmin,
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestCreateAdminUser(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO admin_users`).
		WithArgs("editor", "hash", "Editor", RoleEditor).
		WillReturnRows(sqlmock.NewRows(adminUserColumns()).
			AddRow(3, "editor", "hash", "Editor", RoleEditor, true, nil, now, now))

	user, err := s.CreateAdminUser(context.Background(), CreateAdminUserParams{
		Username:     "editor",
		PasswordHash: "hash",
		Name:         "Editor",
		Role:         RoleEditor,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != 3 || user.Role != RoleEditor {
		t.Errorf("expected created editor back, got %+v", user)
	}
}

func TestGetActiveAdminByUsername_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT (.+) FROM admin_users\s+WHERE lower\(username\) = lower\(\$1\) AND is_active`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(adminUserColumns()))

	_, err := s.GetActiveAdminByUsername(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCustomerUserPassword_NoSuchUser(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE customer_users SET password_hash`).
		WithArgs(int64(99), "newhash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateCustomerUserPassword(context.Background(), 99, "newhash")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCustomerUserExists(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("acme", "owner").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.CustomerUserExists(context.Background(), "acme", "owner")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !exists {
		t.Error("expected exists true")
	}
}
