package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder_BuildPreservesComponentCategoryAndContext(t *testing.T) {
	base := stderrors.New("disk full")

	err := New(base).
		Component("store").
		Category(CategoryDatabase).
		Context("known_file_id", 42).
		Build()

	assert.Equal(t, "disk full", err.Error())
	assert.Equal(t, "store", err.Component())
	assert.Equal(t, CategoryDatabase, err.Category)
	assert.Equal(t, 42, err.GetContext()["known_file_id"])
}

func TestEnhancedError_ComponentDefaultsToUnknown(t *testing.T) {
	err := New(stderrors.New("boom")).Build()
	assert.Equal(t, ComponentUnknown, err.Component())
}

func TestEnhancedError_UnwrapExposesOriginalError(t *testing.T) {
	base := stderrors.New("connection refused")
	err := New(base).Category(CategoryNetwork).Build()

	assert.True(t, stderrors.Is(err, base))
}

func TestEnhancedError_IsComparesByCategory(t *testing.T) {
	a := New(stderrors.New("a")).Category(CategoryTranscription).Build()
	b := New(stderrors.New("b")).Category(CategoryTranscription).Build()
	c := New(stderrors.New("c")).Category(CategoryConversion).Build()

	assert.True(t, a.Is(b))
	assert.False(t, a.Is(c))
}

func TestIsCategory_MatchesEnhancedErrorButNotAStringCopy(t *testing.T) {
	err := New(stderrors.New("timed out")).Category(CategoryTimeout).Build()
	copied := stderrors.New("outer: " + err.Error())

	assert.True(t, IsCategory(err, CategoryTimeout))
	assert.False(t, IsCategory(copied, CategoryTimeout))
}

func TestNewf_FormatsMessageLikeFmtErrorf(t *testing.T) {
	err := Newf("folder %q not found", "/rec").Build()
	assert.Equal(t, `folder "/rec" not found`, err.Error())
}

func TestGetContext_ReturnsACopyNotTheLiveMap(t *testing.T) {
	err := New(stderrors.New("x")).Context("k", "v").Build()

	ctx := err.GetContext()
	ctx["k"] = "mutated"

	require.Equal(t, "v", err.GetContext()["k"], "GetContext must not expose the internal map by reference")
}
