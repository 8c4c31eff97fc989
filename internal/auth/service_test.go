package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/procura-ims/procura/internal/shared"
)

type fakeRepo struct {
	staff     map[string]StaffUser
	suppliers map[string]SupplierAccount
}

func (f *fakeRepo) FindStaffByEmail(ctx context.Context, email string) (StaffUser, error) {
	u, ok := f.staff[email]
	if !ok {
		return StaffUser{}, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeRepo) FindSupplierByEmail(ctx context.Context, email string) (SupplierAccount, error) {
	a, ok := f.suppliers[email]
	if !ok {
		return SupplierAccount{}, shared.ErrNotFound
	}
	return a, nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAuthenticateStaff(t *testing.T) {
	repo := &fakeRepo{staff: map[string]StaffUser{
		"ana@procura.test": {
			ID: 5, Username: "ana", Email: "ana@procura.test",
			Role: "Manager", PasswordHash: hash(t, "s3cret-pass"), Active: true,
		},
		"off@procura.test": {
			ID: 6, Email: "off@procura.test",
			PasswordHash: hash(t, "s3cret-pass"), Active: false,
		},
	}}
	svc := NewService(repo)
	ctx := context.Background()

	actor, err := svc.AuthenticateStaff(ctx, "ana@procura.test", "s3cret-pass")
	require.NoError(t, err)
	require.True(t, actor.IsStaff())
	require.Equal(t, int64(5), actor.UserID)
	require.Equal(t, "Manager", actor.Role)
	require.Equal(t, "ana", actor.DisplayName)

	_, err = svc.AuthenticateStaff(ctx, "ana@procura.test", "wrong-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.AuthenticateStaff(ctx, "nobody@procura.test", "s3cret-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// Disabled accounts fail the same way as bad credentials.
	_, err = svc.AuthenticateStaff(ctx, "off@procura.test", "s3cret-pass")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestAuthenticateSupplier(t *testing.T) {
	repo := &fakeRepo{suppliers: map[string]SupplierAccount{
		"orders@acme.test": {
			SupplierID: 3, CompanyName: "Acme Trading Co.",
			Email: "orders@acme.test", PasswordHash: hash(t, "acme-portal-1"), Active: true,
		},
	}}
	svc := NewService(repo)

	actor, err := svc.AuthenticateSupplier(context.Background(), "orders@acme.test", "acme-portal-1")
	require.NoError(t, err)
	require.True(t, actor.IsSupplier())
	require.Equal(t, int64(3), actor.SupplierID)
	require.Zero(t, actor.UserID)
	require.Empty(t, actor.Role)

	_, err = svc.AuthenticateSupplier(context.Background(), "orders@acme.test", "nope")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
