package utils

import (
	"strings"

	"github.com/gofrs/uuid"
)

var namespace = uuid.NewV5(uuid.NamespaceURL, "https://github.com/DomeLiquid/lendcore")

// GenUuid derives a stable id from parts. The same parts in the same order
// always give the same id.
func GenUuid(parts ...string) uuid.UUID {
	if len(parts) == 0 {
		return uuid.Nil
	}
	return uuid.NewV5(namespace, strings.Join(parts, "/"))
}
