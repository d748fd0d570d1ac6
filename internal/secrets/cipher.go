// Package secrets implements the device cipher service: a process-lifetime
// persisted symmetric secret, an AES-256-GCM cipher keyed from it via
// HKDF-SHA256, and a deterministic digest helper used for deduplication keys.
//
// Every payload column that carries farmer-identifying or application data is
// sealed into an Envelope by this package before it reaches the repository
// layer; the envelope is opaque to every other component.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/text/unicode/norm"
)

const (
	// secretLen is the length of the persisted device secret in bytes.
	secretLen = 32

	// keyLen is the derived AES-256 key length in bytes.
	keyLen = 32

	// keyInfo is the HKDF info string binding derived keys to this use.
	keyInfo = "uzhavan-draft-envelope"
)

// ErrDecryption indicates that an envelope failed authentication or is
// malformed. The affected record is unreadable; the failure is fatal to that
// single record, not to the system.
var ErrDecryption = errors.New("envelope decryption failed")

// ErrEncoding indicates that a value could not be serialized for encryption.
var ErrEncoding = errors.New("value cannot be encoded")

// Envelope is an authenticated ciphertext produced by Cipher.Encrypt.
// A given nonce is used for at most one encryption.
type Envelope struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Bytes returns the binary form [nonce][ciphertext+tag] stored in BLOB
// columns.
func (e Envelope) Bytes() []byte {
	out := make([]byte, len(e.Nonce)+len(e.Ciphertext))
	copy(out, e.Nonce)
	copy(out[len(e.Nonce):], e.Ciphertext)
	return out
}

// Cipher provides authenticated encryption of arbitrary JSON-serializable
// values. It is safe for concurrent use.
type Cipher struct {
	gcm cipher.AEAD
}

// NewCipher derives the AES-256-GCM key from the device secret via
// HKDF-SHA256 and returns a ready cipher. The raw secret is not retained.
func NewCipher(secret []byte) (*Cipher, error) {
	if len(secret) != secretLen {
		return nil, fmt.Errorf("invalid secret length %d: expected %d bytes", len(secret), secretLen)
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("deriving envelope key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	// The cipher object retains its own key schedule.
	ZeroKey(key)

	return &Cipher{gcm: gcm}, nil
}

// ZeroKey overwrites key material in place. Call it once the bytes have been
// handed to NewCipher to limit how long raw key bytes stay in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}

// Encrypt JSON-encodes v and seals it with a fresh random nonce.
// It returns ErrEncoding when v cannot be serialized.
func (c *Cipher) Encrypt(v any) (Envelope, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("generating nonce: %w", err)
	}

	return Envelope{Nonce: nonce, Ciphertext: c.gcm.Seal(nil, nonce, plain, nil)}, nil
}

// EncryptBytes is Encrypt for callers that already hold the binary form.
func (c *Cipher) EncryptBytes(v any) ([]byte, error) {
	env, err := c.Encrypt(v)
	if err != nil {
		return nil, err
	}
	return env.Bytes(), nil
}

// Decrypt opens env and JSON-decodes the plaintext into out. A failed
// authentication tag, a malformed envelope, or an unparsable plaintext all
// surface as ErrDecryption; a wrong-but-parsable value is never returned.
func (c *Cipher) Decrypt(env Envelope, out any) error {
	if len(env.Nonce) != c.gcm.NonceSize() {
		return fmt.Errorf("%w: bad nonce length %d", ErrDecryption, len(env.Nonce))
	}
	plain, err := c.gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return nil
}

// DecryptBytes parses the binary envelope form and decrypts it into out.
func (c *Cipher) DecryptBytes(data []byte, out any) error {
	nonceSize := c.gcm.NonceSize()
	if len(data) <= nonceSize {
		return fmt.Errorf("%w: envelope too short (%d bytes)", ErrDecryption, len(data))
	}
	return c.Decrypt(Envelope{Nonce: data[:nonceSize], Ciphertext: data[nonceSize:]}, out)
}

// Hash computes the deterministic hex digest of the given parts, joined with
// "|" after NFKC normalization. It is used only for deduplication keys
// (e.g. the subsidy policy hash), never for confidentiality.
func Hash(parts ...string) string {
	for i, p := range parts {
		parts[i] = norm.NFKC.String(p)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
