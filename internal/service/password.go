package service

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// ErrUnknownHashFormat is returned when a stored hash is in none of the
// supported formats.
var ErrUnknownHashFormat = errors.New("unknown password hash format")

// defaultPBKDF2Iterations applies to "pbkdf2:<alg>" hashes that omit the
// iteration count.
const defaultPBKDF2Iterations = 600000

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	return hashPasswordCost(password, bcrypt.DefaultCost)
}

func hashPasswordCost(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether password matches hash. Besides bcrypt
// it understands the "method$salt$hex" hashes written by werkzeug
// (pbkdf2 and scrypt), so databases created by earlier deployments keep
// working. A hash in an unsupported or malformed format is an error, not a
// mismatch.
func CheckPasswordHash(hash, password string) (bool, error) {
	if isBcrypt(hash) {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("compare bcrypt hash: %w", err)
	}

	method, salt, want, ok := splitWerkzeug(hash)
	if !ok {
		return false, ErrUnknownHashFormat
	}
	got, err := werkzeugHash(method, salt, password)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func splitWerkzeug(hash string) (method, salt, hexval string, ok bool) {
	parts := strings.SplitN(hash, "$", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// werkzeugHash recomputes the hex digest for a werkzeug method string such
// as "pbkdf2:sha256:600000" or "scrypt:32768:8:1".
func werkzeugHash(method, salt, password string) (string, error) {
	args := strings.Split(method, ":")
	switch args[0] {
	case "pbkdf2":
		if len(args) < 2 || len(args) > 3 {
			return "", fmt.Errorf("%w: %q", ErrUnknownHashFormat, method)
		}
		h, size, err := digest(args[1])
		if err != nil {
			return "", err
		}
		iterations := defaultPBKDF2Iterations
		if len(args) == 3 {
			iterations, err = strconv.Atoi(args[2])
			if err != nil || iterations <= 0 {
				return "", fmt.Errorf("%w: bad iteration count in %q", ErrUnknownHashFormat, method)
			}
		}
		key := pbkdf2.Key([]byte(password), []byte(salt), iterations, size, h)
		return hex.EncodeToString(key), nil

	case "scrypt":
		n, r, p := 1<<15, 8, 1
		if len(args) == 4 {
			var err error
			if n, err = strconv.Atoi(args[1]); err != nil {
				return "", fmt.Errorf("%w: %q", ErrUnknownHashFormat, method)
			}
			if r, err = strconv.Atoi(args[2]); err != nil {
				return "", fmt.Errorf("%w: %q", ErrUnknownHashFormat, method)
			}
			if p, err = strconv.Atoi(args[3]); err != nil {
				return "", fmt.Errorf("%w: %q", ErrUnknownHashFormat, method)
			}
		} else if len(args) != 1 {
			return "", fmt.Errorf("%w: %q", ErrUnknownHashFormat, method)
		}
		key, err := scrypt.Key([]byte(password), []byte(salt), n, r, p, 64)
		if err != nil {
			return "", fmt.Errorf("scrypt: %w", err)
		}
		return hex.EncodeToString(key), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHashFormat, method)
	}
}

func digest(name string) (func() hash.Hash, int, error) {
	switch name {
	case "sha1":
		return sha1.New, sha1.Size, nil
	case "sha256":
		return sha256.New, sha256.Size, nil
	case "sha512":
		return sha512.New, sha512.Size, nil
	default:
		return nil, 0, fmt.Errorf("%w: unsupported digest %q", ErrUnknownHashFormat, name)
	}
}
