// Package codec seals values into opaque handles that clients carry between requests.
//
// A handle is base64url(version || nonce || ciphertext) where the ciphertext is the
// XChaCha20-Poly1305 sealed JSON encoding of the value. Every call draws a fresh nonce,
// so sealing the same value twice yields different handles.
package codec

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/victornm/quizzer/internal/errors"
)

const (
	formatVersion = 1
	minSecretLen  = 16
	hkdfInfo      = "quizzer session handle v1"
)

var encoding = base64.RawURLEncoding

type Config struct {
	// Secret is the process wide key material. It is stretched with HKDF-SHA256.
	Secret string
	// Rand is the nonce source, crypto/rand when nil.
	Rand io.Reader
}

type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

func New(c Config) (*Codec, error) {
	if len(c.Secret) < minSecretLen {
		return nil, fmt.Errorf("codec: secret must be at least %d bytes", minSecretLen)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(c.Secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("codec: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("codec: init cipher: %w", err)
	}

	r := c.Rand
	if r == nil {
		r = rand.Reader
	}

	return &Codec{aead: aead, rand: r}, nil
}

// Seal encrypts v. Strings, numbers and JSON objects are supported.
func (c *Codec) Seal(v any) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", errors.Internal(fmt.Errorf("codec: marshal: %w", err))
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", errors.Internal(fmt.Errorf("codec: read nonce: %w", err))
	}

	out := make([]byte, 0, 1+len(nonce)+len(plain)+c.aead.Overhead())
	out = append(out, formatVersion)
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, plain, []byte{formatVersion})

	return encoding.EncodeToString(out), nil
}

// Open reverses Seal. Integral numbers come back as int64 (uint64 above its range), other numbers as float64,
// objects as map[string]any. Any malformed or modified token yields a tampered error.
func (c *Codec) Open(token string) (any, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return nil, errors.Tampered(fmt.Errorf("codec: decode: %w", err))
	}

	ns := c.aead.NonceSize()
	if len(raw) < 1+ns+c.aead.Overhead() {
		return nil, errors.Tampered(fmt.Errorf("codec: token too short: %d bytes", len(raw)))
	}
	if raw[0] != formatVersion {
		return nil, errors.Tampered(fmt.Errorf("codec: unknown version %d", raw[0]))
	}

	plain, err := c.aead.Open(nil, raw[1:1+ns], raw[1+ns:], raw[:1])
	if err != nil {
		return nil, errors.Tampered(fmt.Errorf("codec: open: %w", err))
	}

	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Tampered(fmt.Errorf("codec: unmarshal: %w", err))
	}

	return normalize(v), nil
}

// OpenString opens a token that must carry a string.
func (c *Codec) OpenString(token string) (string, error) {
	v, err := c.Open(token)
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", errors.Tampered(fmt.Errorf("codec: want string, got %T", v))
	}

	return s, nil
}

// OpenInt64 opens a token that must carry an integer.
func (c *Codec) OpenInt64(token string) (int64, error) {
	v, err := c.Open(token)
	if err != nil {
		return 0, err
	}

	n, ok := v.(int64)
	if !ok {
		return 0, errors.Tampered(fmt.Errorf("codec: want integer, got %T", v))
	}

	return n, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return n
		}
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) {
			return t.String()
		}
		return f
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}
