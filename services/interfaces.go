package services

// PasswordHasher hashes and verifies user passwords. The concrete
// implementation lives in internal/auth; services only consume the contract
// so tests can substitute a fake.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}
