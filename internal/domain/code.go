// internal/domain/code.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeGenerator produces a candidate unique code for the given prefix.
type CodeGenerator func(prefix string) string

// GenerateCode returns PREFIX-yyyymmddhhmmss-XXXXXXXX where the suffix is
// 32 random bits taken from a version 4 UUID.
func GenerateCode(prefix string) string {
	return generateCodeAt(prefix, time.Now().UTC())
}

func generateCodeAt(prefix string, at time.Time) string {
	id := uuid.New()
	suffix := strings.ToUpper(fmt.Sprintf("%x", id[:4]))
	return fmt.Sprintf("%s-%s-%s", prefix, at.Format("20060102150405"), suffix)
}
