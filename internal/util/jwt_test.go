package util

import (
	"testing"
	"time"

	"lms_backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseJWT(t *testing.T) {
	user := &model.User{Name: "alice", Email: "alice@example.com", Role: model.Student}
	user.ID = 42

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, model.Student, claims.Role)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	user := &model.User{Name: "alice", Role: model.Student}
	user.ID = 1

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestParseJWT_Expired(t *testing.T) {
	user := &model.User{Name: "alice", Role: model.Student}
	user.ID = 1

	token, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}
