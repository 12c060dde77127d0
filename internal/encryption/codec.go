package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "aes-256-ctr"

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrEmptyKey             = errors.New("empty encryption key")
	ErrDecryptionFailed     = errors.New("decryption failed")
)

// Codec encrypts single string values into hex so they fit a plain text column.
// There is no authentication tag: tampered ciphertext decrypts to garbage.
type Codec struct {
	block cipher.Block
	iv    []byte
}

// New builds a codec for algorithm ("aes-128-ctr", "aes-192-ctr", "aes-256-ctr") keyed by a passphrase.
func New(algorithm, passphrase string) (*Codec, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}

	keyLen, err := keySize(algorithm)
	if err != nil {
		return nil, err
	}

	key, iv := bytesToKey([]byte(passphrase), keyLen, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &Codec{block: block, iv: iv}, nil
}

func keySize(algorithm string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "aes-128-ctr":
		return 16, nil
	case "aes-192-ctr":
		return 24, nil
	case "aes-256-ctr":
		return 32, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// bytesToKey is OpenSSL's EVP_BytesToKey with MD5, one round and no salt.
// Ciphertexts stay readable by anything that used the same passphrase with openssl.
func bytesToKey(pass []byte, keyLen, ivLen int) ([]byte, []byte) {
	var (
		out  = make([]byte, 0, keyLen+ivLen+md5.Size)
		prev []byte
	)
	for len(out) < keyLen+ivLen {
		h := md5.New()
		h.Write(prev)
		h.Write(pass)
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:keyLen], out[keyLen : keyLen+ivLen]
}

func (c *Codec) xor(in []byte) []byte {
	out := make([]byte, len(in))
	cipher.NewCTR(c.block, c.iv).XORKeyStream(out, in)
	return out
}

// Encrypt returns the lower-case hex ciphertext of plaintext.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	return hex.EncodeToString(c.xor([]byte(plaintext))), nil
}

// Decrypt reverses Encrypt.
func (c *Codec) Decrypt(ciphertext string) (string, error) {
	raw, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	out := c.xor(raw)
	if !utf8.Valid(out) {
		return "", fmt.Errorf("%w: plaintext is not utf-8", ErrDecryptionFailed)
	}
	return string(out), nil
}
