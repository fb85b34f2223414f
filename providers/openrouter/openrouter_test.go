package openrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReturnsAModel(t *testing.T) {
	m := New("key", "openai/gpt-4o")
	assert.NotNil(t, m)
}
