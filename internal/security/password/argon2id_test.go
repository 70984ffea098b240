package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	phc, err := Hash(Default, "pw123456")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$"))

	assert.True(t, Verify("pw123456", phc))
	assert.False(t, Verify("pw1234567", phc))
	assert.False(t, Verify("", phc))
	assert.False(t, Verify("pw123456", ""))
	assert.False(t, Verify("pw123456", "$argon2id$v=18$m=1,t=1,p=1$AA$AA"))
}

func TestHash_EmptyPassword(t *testing.T) {
	_, err := Hash(Default, "")
	assert.Error(t, err)
}

func TestHash_SaltedPerCall(t *testing.T) {
	a, err := Hash(Default, "same")
	require.NoError(t, err)
	b, err := Hash(Default, "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
