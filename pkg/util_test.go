package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytesToString(t *testing.T) {
	stringBytes := []byte("renderwise content backend")
	got := BytesToString(stringBytes)
	assert.Equal(t, "renderwise content backend", got)

	assert.Equal(t, "", BytesToString(nil))
}
