package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetTreatsBlankAsUnset(t *testing.T) {
	t.Setenv("FISHIT_TEST_PORT", "   ")
	assert.Equal(t, "8080", Get("FISHIT_TEST_PORT", "8080"))

	t.Setenv("FISHIT_TEST_PORT", " 9000 ")
	assert.Equal(t, "9000", Get("FISHIT_TEST_PORT", "8080"))
}

func TestFirstWalksKeysInOrder(t *testing.T) {
	t.Setenv("FISHIT_TEST_A", "")
	t.Setenv("FISHIT_TEST_B", "web.2")
	assert.Equal(t, "web.2", First("local", "FISHIT_TEST_A", "FISHIT_TEST_B"))
	assert.Equal(t, "local", First("local", "FISHIT_TEST_MISSING"))
}
