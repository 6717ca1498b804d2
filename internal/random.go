package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Handle is an opaque 128-bit identifier.
type Handle [16]byte

// NewHandle returns a handle drawn from crypto/rand.
func NewHandle() (Handle, error) {
	var h Handle
	_, err := rand.Read(h[:])
	return h, err
}

func (h Handle) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// ParseHandle decodes the String form of a handle.
func ParseHandle(s string) (Handle, error) {
	var h Handle

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		return h, errors.New("invalid handle size")
	}

	copy(h[:], raw)
	if h.String() != s {
		return Handle{}, errors.New("non-canonical handle")
	}
	return h, nil
}

// NewOTP returns a fixed-width string of uniformly distributed decimal
// digits.
func NewOTP(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}
