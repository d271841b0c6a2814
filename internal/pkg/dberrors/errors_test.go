package dberrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateConstraintError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}

	assert.True(t, IsDuplicateConstraintError(dup, "users_email_key"))
	assert.False(t, IsDuplicateConstraintError(dup, "profiles_username_key"))

	// Same constraint name but a different SQLSTATE is not a duplicate
	notNull := &pgconn.PgError{Code: "23502", ConstraintName: "users_email_key"}
	assert.False(t, IsDuplicateConstraintError(notNull, "users_email_key"))

	// Wrapped errors still match
	wrapped := fmt.Errorf("error creating user: %w", dup)
	assert.True(t, IsDuplicateConstraintError(wrapped, "users_email_key"))

	assert.False(t, IsDuplicateConstraintError(errors.New("plain"), "users_email_key"))
	assert.False(t, IsDuplicateConstraintError(nil, "users_email_key"))
}

func TestIsForeignKeyViolation(t *testing.T) {
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "group_members_group_id_fkey"}

	assert.True(t, IsForeignKeyViolation(fk))
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("error adding member: %w", fk)))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(errors.New("plain")))
}
