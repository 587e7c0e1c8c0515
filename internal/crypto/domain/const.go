package domain

// KeyType identifies the algorithm a CryptoKey is meant for. Backends are
// dispatched by this value.
//
// Algorithm selection guidelines for encryption keys:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on mobile devices or systems without AES-NI
//   - Both provide equivalent 256-bit security when used correctly
type KeyType string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	AESGCM KeyType = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Constant-time implementation
	ChaCha20 KeyType = "chacha20-poly1305"

	// HmacSHA256 represents a keyed SHA-256 digest used for searchable indexes.
	// The stored key material is expanded with HKDF before use.
	HmacSHA256 KeyType = "hmac-sha256"
)

// KeyUsage separates keys that encrypt payloads from keys that compute digests.
type KeyUsage string

const (
	// UsageEncryption keys encrypt and decrypt the payload field of an entity.
	UsageEncryption KeyUsage = "encryption"
	// UsageHmac keys compute searchable digests.
	UsageHmac KeyUsage = "hmac"
)

// RotationMode marks the direction of an ongoing key transition.
type RotationMode string

const (
	// RotationNone is the steady state: no transition in progress.
	RotationNone RotationMode = "none"
	// RotationKeyOn marks a key that is being adopted. Records not using it are moved onto it.
	RotationKeyOn RotationMode = "key_on"
	// RotationKeyOff marks a key that is being retired. Records using it are moved off it.
	RotationKeyOff RotationMode = "key_off"
)

// KeySize is the size in bytes of every generated key.
const KeySize = 32
