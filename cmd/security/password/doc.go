// Package password provides password hashing and verification utilities.
//
// Hashes are scrypt-derived keys stored as "<key_hex>.<salt_hex>". The package includes:
// - Configurable scrypt parameters (via environment variables)
// - Password policy validation
// - Strict stored-hash decoding with anti-DoS bounds
// - A semaphore-bounded Hasher for use on request paths
//
// Security notes:
// - Stored hashes are treated as untrusted input during Verify and are validated accordingly.
// - Key comparison is constant-time.
package password
