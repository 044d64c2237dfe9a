package cryptox

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// BackupCodeLength is the character length of a recovery code.
const BackupCodeLength = 8

// GenerateBackupCode returns a single-use recovery code: 4 random bytes
// rendered as 8 uppercase hex characters. Short enough to type from a
// printed sheet, 32 bits of entropy per code.
func GenerateBackupCode() (string, error) {
	buf := make([]byte, BackupCodeLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate backup code: %w", err)
	}
	return strings.ToUpper(fmt.Sprintf("%x", buf)), nil
}
