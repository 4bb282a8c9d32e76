package tokens

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInsecureSecret = errors.New("insecure secret key")

const MinSecretLength = 32

// Placeholder values copied from sample .env files and tutorials.
var deniedSecrets = []string{
	"changeme",
	"secret",
	"your-secret-key",
	"your-secret-key-here",
	"your-secret-key-change-in-production",
	"your-super-secret-key-change-this-in-production",
	"change-this-to-a-secure-random-secret-key",
	"change_me_to_a_random_string_of_at_least_32_chars",
	"please-change-this-secret-key-before-deploying",
	"00000000000000000000000000000000",
	"01234567890123456789012345678901",
	"abcdefghijklmnopqrstuvwxyz012345",
}

// ValidateSecret rejects signing secrets that are too short or are known
// example values. Callers treat a failure as fatal at startup.
func ValidateSecret(secret string) error {
	s := strings.TrimSpace(secret)
	if len(s) < MinSecretLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrInsecureSecret, MinSecretLength)
	}
	for _, denied := range deniedSecrets {
		if strings.EqualFold(s, denied) {
			return fmt.Errorf("%w: placeholder value", ErrInsecureSecret)
		}
	}
	return nil
}
