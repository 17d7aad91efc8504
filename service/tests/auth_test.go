package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zlnvch/cipherchat/models"
	"github.com/zlnvch/cipherchat/service"
)

func TestCreateAndVerifyJWT(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	token, err := svc.CreateJWT("mod123", "google", "p123", models.RoleModerator)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	gotId, gotProvider, gotProviderId, gotRole, err := svc.VerifyJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, "mod123", gotId)
	assert.Equal(t, "google", gotProvider)
	assert.Equal(t, "p123", gotProviderId)
	assert.Equal(t, models.RoleModerator, gotRole)
}

func TestVerifyJWT_Invalid(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	_, _, _, _, err := svc.VerifyJWT("invalid.token.string")
	assert.Error(t, err)
}

func TestVerifyJWT_Tampered(t *testing.T) {
	svc, _, _, _, _ := setupService(t)

	token, err := svc.CreateJWT("mod123", "google", "p123", models.RoleJanitor)
	assert.NoError(t, err)

	// Flip a character in the signature
	tampered := token[:len(token)-2] + "xx"
	_, _, _, _, err = svc.VerifyJWT(tampered)
	assert.Error(t, err)
}

func TestVerifyJWT_WrongSecret(t *testing.T) {
	svc, _, _, _, _ := setupService(t)
	other, _, _, _, _ := setupServiceWithSecret(t, []byte("another-secret"))

	token, err := svc.CreateJWT("mod123", "google", "p123", models.RoleAdmin)
	assert.NoError(t, err)

	_, _, _, _, err = other.VerifyJWT(token)
	assert.Error(t, err)
}

func TestAuthenticateToken(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)
	ctx := context.Background()

	stored := models.Moderator{
		Id:         "mod123",
		Username:   "alice",
		Provider:   "google",
		ProviderId: "p123",
		Role:       models.RoleAdmin,
	}
	mockStore.On("GetModerator", ctx, "google", "p123").Return(stored, nil)

	// Token carries a stale role; the stored profile wins
	token, err := svc.CreateJWT("mod123", "google", "p123", models.RoleJanitor)
	assert.NoError(t, err)

	mod, err := svc.AuthenticateToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, stored, mod)
}

func TestAuthenticateToken_Empty(t *testing.T) {
	svc, mockStore, _, _, _ := setupService(t)

	_, err := svc.AuthenticateToken(context.Background(), "")
	assert.Error(t, err)
	mockStore.AssertNotCalled(t, "GetModerator")
}

func TestAuthorizeRole(t *testing.T) {
	janitor := models.Moderator{Role: models.RoleJanitor}
	moderator := models.Moderator{Role: models.RoleModerator}
	admin := models.Moderator{Role: models.RoleAdmin}

	assert.NoError(t, service.AuthorizeRole(janitor, models.RoleJanitor))
	assert.Error(t, service.AuthorizeRole(janitor, models.RoleModerator))
	assert.Error(t, service.AuthorizeRole(janitor, models.RoleAdmin))

	assert.NoError(t, service.AuthorizeRole(moderator, models.RoleJanitor))
	assert.NoError(t, service.AuthorizeRole(moderator, models.RoleModerator))
	assert.Error(t, service.AuthorizeRole(moderator, models.RoleAdmin))

	assert.NoError(t, service.AuthorizeRole(admin, models.RoleAdmin))

	// Unknown roles rank below janitor
	assert.Error(t, service.AuthorizeRole(models.Moderator{Role: "intern"}, models.RoleJanitor))
}

func TestCreateJWT_Format(t *testing.T) {
	// Tokens are three dot-separated base64 sections
	svc, _, _, _, _ := setupService(t)

	token, err := svc.CreateJWT("mod123", "github", "42", models.RoleJanitor)
	assert.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)
}
