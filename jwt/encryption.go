package jwt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrEncryptionDisabled is returned by the disabled encryptor instead of passing data through.
	ErrEncryptionDisabled = errors.New("token encryption is not enabled")
	// ErrDecrypt is returned when a ciphertext fails authentication or decoding.
	ErrDecrypt = errors.New("token decryption failed")
)

// EncryptionMode selects the envelope applied to signed token strings.
type EncryptionMode string

const (
	// EncryptionDisabled turns the layer off; Encrypt and Decrypt return ErrEncryptionDisabled.
	EncryptionDisabled EncryptionMode = ""
	// EncryptionAESCBC uses AES-256-CBC with an HMAC-SHA256 tag (encrypt-then-MAC).
	EncryptionAESCBC EncryptionMode = "AES-CBC"
	// EncryptionEC uses an ephemeral P-256 ECDH agreement, HKDF-SHA256 and XChaCha20-Poly1305.
	EncryptionEC EncryptionMode = "EC"
)

const (
	aesCBCKeySize  = 64 // 32 bytes cipher key followed by 32 bytes MAC key
	ecEnvelopeInfo = "goidentity token envelope v1"
)

// EncryptionConfig configures an [Encryptor].
//
// AES-CBC reads Key. EC reads ECPrivateKey (raw P-256 scalar) for decryption
// and ECPublicKey (uncompressed point) for encryption; the public key is
// derived when only the private key is given.
type EncryptionConfig struct {
	Mode         EncryptionMode
	Key          []byte
	ECPrivateKey []byte
	ECPublicKey  []byte
}

// Encryptor wraps and unwraps signed token strings.
type Encryptor interface {
	Encrypt(token string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Enabled() bool
}

// NewEncryptor builds the encryptor selected by cfg.Mode.
func NewEncryptor(cfg EncryptionConfig) (Encryptor, error) {
	switch EncryptionMode(strings.ToUpper(string(cfg.Mode))) {
	case EncryptionDisabled:
		return disabledEncryptor{}, nil
	case EncryptionAESCBC:
		return newAESCBC(cfg.Key)
	case EncryptionEC:
		return newECEnvelope(cfg.ECPrivateKey, cfg.ECPublicKey)
	default:
		return nil, fmt.Errorf("unsupported encryption mode %q", cfg.Mode)
	}
}

type disabledEncryptor struct{}

func (disabledEncryptor) Encrypt(string) (string, error) { return "", ErrEncryptionDisabled }
func (disabledEncryptor) Decrypt(string) (string, error) { return "", ErrEncryptionDisabled }
func (disabledEncryptor) Enabled() bool                  { return false }

type aesCBC struct {
	block  cipher.Block
	macKey []byte
}

func newAESCBC(key []byte) (*aesCBC, error) {
	if len(key) != aesCBCKeySize {
		return nil, fmt.Errorf("AES-CBC key must be %d bytes", aesCBCKeySize)
	}
	block, err := aes.NewCipher(key[:32])
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}
	return &aesCBC{block: block, macKey: append([]byte(nil), key[32:]...)}, nil
}

func (a *aesCBC) Enabled() bool { return true }

// Encrypt output is base64url(iv || ciphertext || tag).
func (a *aesCBC) Encrypt(token string) (string, error) {
	padded := pkcs7Pad([]byte(token), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded), aes.BlockSize+len(padded)+sha256.Size)
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(a.block, iv).CryptBlocks(out[aes.BlockSize:], padded)
	out = append(out, a.tag(out)...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (a *aesCBC) Decrypt(ciphertext string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(data) < 2*aes.BlockSize+sha256.Size {
		return "", ErrDecrypt
	}
	body, tag := data[:len(data)-sha256.Size], data[len(data)-sha256.Size:]
	if !hmac.Equal(tag, a.tag(body)) {
		return "", ErrDecrypt
	}
	ct := body[aes.BlockSize:]
	if len(ct)%aes.BlockSize != 0 {
		return "", ErrDecrypt
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(a.block, body[:aes.BlockSize]).CryptBlocks(plain, ct)
	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func (a *aesCBC) tag(data []byte) []byte {
	mac := hmac.New(sha256.New, a.macKey)
	_, _ = mac.Write(data)
	return mac.Sum(nil)
}

func pkcs7Pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, ErrDecrypt
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, ErrDecrypt
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecrypt
		}
	}
	return data[:len(data)-n], nil
}

type ecEnvelope struct {
	private *ecdh.PrivateKey
	public  *ecdh.PublicKey
}

func newECEnvelope(privateKey, publicKey []byte) (*ecEnvelope, error) {
	curve := ecdh.P256()
	env := &ecEnvelope{}
	if len(privateKey) > 0 {
		priv, err := curve.NewPrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid EC private key: %w", err)
		}
		env.private = priv
		env.public = priv.PublicKey()
	}
	if len(publicKey) > 0 {
		pub, err := curve.NewPublicKey(publicKey)
		if err != nil {
			return nil, fmt.Errorf("invalid EC public key: %w", err)
		}
		env.public = pub
	}
	if env.public == nil {
		return nil, errors.New("EC encryption requires a private or public key")
	}
	return env, nil
}

func (e *ecEnvelope) Enabled() bool { return true }

// Encrypt output is base64url(ephemeral public key || nonce || sealed token).
func (e *ecEnvelope) Encrypt(token string) (string, error) {
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(e.public)
	if err != nil {
		return "", fmt.Errorf("ecdh: %w", err)
	}
	epk := ephemeral.PublicKey().Bytes()
	aead, err := envelopeAEAD(shared, epk)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(epk)+len(nonce)+len(token)+aead.Overhead())
	out = append(out, epk...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(token), epk)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func (e *ecEnvelope) Decrypt(ciphertext string) (string, error) {
	if e.private == nil {
		return "", errors.New("EC decryption requires a private key")
	}
	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	epkLen := len(e.public.Bytes())
	if len(data) < epkLen+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", ErrDecrypt
	}
	epk := data[:epkLen]
	peer, err := ecdh.P256().NewPublicKey(epk)
	if err != nil {
		return "", ErrDecrypt
	}
	shared, err := e.private.ECDH(peer)
	if err != nil {
		return "", ErrDecrypt
	}
	aead, err := envelopeAEAD(shared, epk)
	if err != nil {
		return "", err
	}
	nonce := data[epkLen : epkLen+aead.NonceSize()]
	plain, err := aead.Open(nil, nonce, data[epkLen+aead.NonceSize():], epk)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func envelopeAEAD(shared, salt []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(ecEnvelopeInfo)), key); err != nil {
		return nil, fmt.Errorf("derive envelope key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create xchacha20: %w", err)
	}
	return aead, nil
}
