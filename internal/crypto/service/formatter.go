package service

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// cipherFormatter serializes results as "<key-id>:<base64 nonce>:<base64 ciphertext>".
type cipherFormatter struct{}

// NewCipherFormatter creates the default CipherFormatter.
func NewCipherFormatter() CipherFormatter {
	return &cipherFormatter{}
}

func (f *cipherFormatter) Format(result *cryptoDomain.CipherResult) string {
	return fmt.Sprintf(
		"%s:%s:%s",
		result.KeyID.String(),
		base64.StdEncoding.EncodeToString(result.Nonce),
		base64.StdEncoding.EncodeToString(result.Ciphertext),
	)
}

func (f *cipherFormatter) Parse(cipherText string) (*cryptoDomain.CipherResult, error) {
	parts := strings.Split(cipherText, ":")
	if len(parts) != 3 {
		return nil, cryptoDomain.ErrInvalidCipherText
	}

	keyID, err := uuid.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid key id", cryptoDomain.ErrInvalidCipherText)
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) == 0 {
		return nil, fmt.Errorf("%w: invalid nonce", cryptoDomain.ErrInvalidCipherText)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext", cryptoDomain.ErrInvalidCipherText)
	}

	return &cryptoDomain.CipherResult{KeyID: keyID, Nonce: nonce, Ciphertext: ciphertext}, nil
}
