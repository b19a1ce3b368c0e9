// internal/service/codes.go
package service

import (
	"errors"
	"fmt"

	"wallet-ledger/internal/domain"
	"wallet-ledger/internal/util"
)

const defaultCodeMaxAttempts = 5

// insertWithUniqueCode calls insert with a fresh code until it stops
// reporting util.ErrDuplicateCode, at most maxAttempts times.
func insertWithUniqueCode(newCode domain.CodeGenerator, prefix string, maxAttempts int, insert func(code string) error) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultCodeMaxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := insert(newCode(prefix))
		if err == nil {
			return nil
		}
		if !errors.Is(err, util.ErrDuplicateCode) {
			return err
		}
	}
	return fmt.Errorf("no unique %s code after %d attempts: %w", prefix, maxAttempts, util.ErrDuplicateCode)
}
