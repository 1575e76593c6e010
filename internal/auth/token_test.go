package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timothy-han/mara/internal/auth"
	"github.com/timothy-han/mara/pkg/models"
)

func testUser() *models.User {
	return &models.User{ID: 42, Email: "analyst@example.com", Name: "Analyst"}
}

func TestIssueVerify_Roundtrip(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	user, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "analyst@example.com", user.Email)
	assert.Equal(t, "Analyst", user.Name)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := auth.NewIssuer("secret-a", time.Hour)
	other := auth.NewIssuer("secret-b", time.Hour)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = other.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", -time.Minute)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	issuer := auth.NewIssuer("test-secret", time.Hour)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := issuer.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, "token %q", token)
	}
}
