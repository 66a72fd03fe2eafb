package secretref

import (
	"fmt"
	"strings"

	dserrors "github.com/jejernig/keyvault-to-appconfig/internal/errors"
)

// Mode selects how secrets are materialised in the target store.
type Mode string

const (
	ModeReference Mode = "reference"
	ModeCopy      Mode = "copy"
)

// ParseMode accepts reference, copy and the aliases copy-value and
// keyvault-reference. An empty string is reference.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reference", "keyvault-reference", "kv-reference":
		return ModeReference, nil
	case "copy", "copy-value", "copyvalue":
		return ModeCopy, nil
	}
	return "", dserrors.ConfigError{
		Field:      "secretMode.mode",
		Value:      s,
		Message:    fmt.Sprintf("unknown secret handling mode %q", s),
		Suggestion: "Use 'reference' or 'copy'",
	}
}
