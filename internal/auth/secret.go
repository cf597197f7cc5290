package auth

import "golang.org/x/crypto/bcrypt"

// HashAdminSecret hashes the admin API secret with the configured
// cost; the hash, not the secret, lives in configuration.
func HashAdminSecret(secret string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAdminSecret compares a presented secret against the stored
// hash.
func VerifyAdminSecret(hashed, secret string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret))
}
