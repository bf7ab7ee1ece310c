//go:build !(darwin && cgo)

package keychain

import (
	"fmt"

	"github.com/semmy-space/credstore/internal/secrets"
)

func checkPlatform() error {
	return fmt.Errorf("keychain: %w", secrets.ErrUnsupportedPlatform)
}

// systemNative is never reached here: checkPlatform fails first.
func systemNative() Native { return nil }
