package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumqp/portal/core"
	"github.com/quantumqp/portal/core/user"
	"github.com/quantumqp/portal/storage/database/inmem"
	"github.com/quantumqp/portal/tests"
)

func TestValidatePassword(t *testing.T) {
	usr := user.User{Name: "Rosalind Franklin", Email: "rosalind@quantum.test"}

	tests := []struct {
		name    string
		pwd     string
		wantErr string
	}{
		{"too short", "Ab1!", "password must contain at least 8 characters"},
		{"whitespace", "Abcd 123!", "password must not contain whitespace"},
		{"all numeric", "1234567890", "password cannot be entirely numeric"},
		{"no special", "Abcdefg123", "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{"no upper", "abcdefg1!", "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"},
		{"similar to email", "Rosalind@quantum1", "password cannot be similar to user attributes"},
		{"valid", "Qu4ntum!Leap", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := user.ValidatePassword(tt.pwd, usr)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			if assert.ErrorAs(t, err, &vErr) {
				assert.Equal(t, []core.FieldError{{Field: "password", Error: tt.wantErr}}, vErr.Fields)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	validate, translator := testutil.NewValidator()
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	svc := user.NewService(repo, validate, translator)

	usr, err := svc.Create(ctx, user.NewUser{
		Name:            " Ada ",
		Email:           "Ada@Quantum.test",
		Password:        "Qu4ntum!Leap",
		PasswordConfirm: "Qu4ntum!Leap",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", usr.Name)
	assert.Equal(t, "ada@quantum.test", usr.Email)
	assert.Equal(t, user.RoleUser, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Qu4ntum!Leap"))

	tests := []struct {
		name       string
		nu         user.NewUser
		wantFields []string
	}{
		{"missing fields", user.NewUser{}, []string{"name", "email", "password", "password_confirm"}},
		{"bad email", user.NewUser{Name: "B", Email: "nope", Password: "Qu4ntum!Leap", PasswordConfirm: "Qu4ntum!Leap"}, []string{"email"}},
		{"mismatch", user.NewUser{Name: "B", Email: "b@quantum.test", Password: "Qu4ntum!Leap", PasswordConfirm: "other"}, []string{"password_confirm"}},
		{"weak password", user.NewUser{Name: "B", Email: "b@quantum.test", Password: "weak", PasswordConfirm: "weak"}, []string{"password"}},
		{"duplicate email", user.NewUser{Name: "Ada", Email: " ADA@quantum.test", Password: "Qu4ntum!Leap", PasswordConfirm: "Qu4ntum!Leap"}, []string{"email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.nu)
			var vErr *core.ValidationError
			if !assert.ErrorAs(t, err, &vErr) {
				return
			}
			got := make([]string, 0, len(vErr.Fields))
			for _, fe := range vErr.Fields {
				got = append(got, fe.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}

	usr, err = svc.SetLastLogin(ctx, usr)
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())

	_, err = svc.SetPassword(ctx, usr, "short")
	assert.Error(t, err)
	usr, err = svc.SetPassword(ctx, usr, "N3w!Passphrase")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w!Passphrase"))

	_, err = svc.GetByEmail(ctx, "missing@quantum.test")
	assert.True(t, core.IsNotFound(err))
}
