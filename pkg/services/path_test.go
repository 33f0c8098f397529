package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
)

func TestValidateNodeUID(t *testing.T) {
	assert.NoError(t, validateNodeUID("n1"))
	assert.NoError(t, validateNodeUID("02.15-a"))

	err := validateNodeUID("")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	err = validateNodeUID("a/b")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestChildPath(t *testing.T) {
	assert.Equal(t, "r/c", childPath("r", "c"))
	assert.Equal(t, "r/a/b/c", childPath("r/a/b", "c"))
}

func TestSplitParentPath(t *testing.T) {
	assert.Nil(t, splitParentPath("root"))

	p := splitParentPath("root/child")
	require.NotNil(t, p)
	assert.Equal(t, "root", *p)

	p = splitParentPath("a/b/c/d")
	require.NotNil(t, p)
	assert.Equal(t, "a/b/c", *p)
}

func TestRebasePath(t *testing.T) {
	// Subtree moved from under "a/b" to under "x".
	assert.Equal(t, "x/c", rebasePath("a/b/c", "x/c", "a/b/c"))
	assert.Equal(t, "x/c/d", rebasePath("a/b/c", "x/c", "a/b/c/d"))
	assert.Equal(t, "x/c/d/e", rebasePath("a/b/c", "x/c", "a/b/c/d/e"))

	// Promotion to root shortens the prefix.
	assert.Equal(t, "c/d", rebasePath("a/b/c", "c", "a/b/c/d"))
}

func TestIsSelfOrDescendantPath(t *testing.T) {
	assert.True(t, isSelfOrDescendantPath("a/b", "a/b"))
	assert.True(t, isSelfOrDescendantPath("a/b", "a/b/c"))
	assert.True(t, isSelfOrDescendantPath("a/b", "a/b/c/d"))

	assert.False(t, isSelfOrDescendantPath("a/b", "a"))
	// Sibling with a shared textual prefix is not a descendant.
	assert.False(t, isSelfOrDescendantPath("a/b", "a/bc"))
	assert.False(t, isSelfOrDescendantPath("a/b", "x/y"))
}

func TestPathLevel(t *testing.T) {
	assert.Equal(t, 0, pathLevel("root"))
	assert.Equal(t, 1, pathLevel("root/a"))
	assert.Equal(t, 3, pathLevel("root/a/b/c"))
}
