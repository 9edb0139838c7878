package utils

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
)

func TestGenUuid(t *testing.T) {
	a := GenUuid("group", "SOL", "sol-mint")
	assert.Equal(t, a, GenUuid("group", "SOL", "sol-mint"))
	assert.NotEqual(t, a, GenUuid("group", "sol-mint", "SOL"))
	assert.Equal(t, uuid.V5, a.Version())
	assert.Equal(t, uuid.Nil, GenUuid())
}
