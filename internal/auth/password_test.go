package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRejectPasswordMatchesCheckCost(t *testing.T) {
	assert.False(t, RejectPassword("placeholder"))
	assert.False(t, RejectPassword(""))

	cost, err := bcrypt.Cost(placeholderHash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)

	hash, err := HashPassword("password123")
	require.NoError(t, err)
	start := time.Now()
	CheckPassword(hash, "wrong-password")
	check := time.Since(start)

	start = time.Now()
	RejectPassword("wrong-password")
	reject := time.Since(start)

	// same cost factor, so the two are of the same order
	assert.Greater(t, reject, check/4)
}
