package namespace

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckName(t *testing.T) {
	valid := []string{"a", "tank", "my-fs_01", "with.dots", strings.Repeat("x", MaxNameLen)}
	for _, name := range valid {
		assert.NoError(t, CheckName(name), "name %q", name)
	}

	invalid := []string{"", "a/b", "/lead", "trail/", "nul\x00byte", strings.Repeat("x", MaxNameLen+1)}
	for _, name := range invalid {
		assert.Error(t, CheckName(name), "name %q", name)
	}
}

func TestIsExhausted(t *testing.T) {
	assert.True(t, IsExhausted(ErrIDExhausted))
	assert.True(t, IsExhausted(fmt.Errorf("allocate: %w", ErrIDExhausted)))
	assert.False(t, IsExhausted(errors.New("other")))
	assert.False(t, IsExhausted(nil))
}
