//go:build !windows

package credman

import (
	"fmt"

	"github.com/semmy-space/credstore/internal/secrets"
)

func systemVault() (Vault, error) {
	return nil, fmt.Errorf("credman: %w", secrets.ErrUnsupportedPlatform)
}
