package validation

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Slug     string `json:"slug" binding:"required,slug"`
	Category string `json:"category" binding:"omitempty,doccategory"`
	Locale   string `json:"locale" binding:"omitempty,locale"`
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register())

	assert.NoError(t, binding.Validator.ValidateStruct(&sample{Slug: "acme-inc", Category: "invoice", Locale: "de"}))
	assert.NoError(t, binding.Validator.ValidateStruct(&sample{Slug: "a1"}))

	err := binding.Validator.ValidateStruct(&sample{Slug: "-Bad", Category: "memo", Locale: "it"})
	require.Error(t, err)
	msg := Describe(err)
	assert.Contains(t, msg, "Slug must be")
	assert.Contains(t, msg, "Category must be one of contract")
	assert.Contains(t, msg, "Locale must be one of en, es, de, fr")
}

func TestIsSlug(t *testing.T) {
	assert.True(t, IsSlug("acme"))
	assert.True(t, IsSlug("0-team"))
	assert.False(t, IsSlug("a"))
	assert.False(t, IsSlug("Acme"))
	assert.False(t, IsSlug("-acme"))
	assert.False(t, IsSlug("acme_inc"))
}

func TestDescribe_NonValidationError(t *testing.T) {
	assert.Equal(t, "invalid request: EOF", Describe(errors.New("EOF")))
}
