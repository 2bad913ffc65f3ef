package cardgen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const panLen = 16

// GeneratePAN generates a 16-digit PAN with a Luhn check digit for the given
// BIN prefix.
func GeneratePAN(bin string) (string, error) {
	if err := ValidateBIN(bin); err != nil {
		return "", err
	}

	fill := panLen - 1 - len(bin)
	if fill <= 0 {
		return "", fmt.Errorf("bin too long: %s", bin)
	}

	digits, err := randomDigits(fill)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}

	body := bin + digits
	return body + luhnCheckDigit(body), nil
}

// GenerateUniquePAN generates PANs until exists reports the candidate as
// unused, up to maxAttempts.
func GenerateUniquePAN(bin string, maxAttempts int, exists func(pan string) (bool, error)) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	for i := 0; i < maxAttempts; i++ {
		pan, err := GeneratePAN(bin)
		if err != nil {
			return "", err
		}
		used, err := exists(pan)
		if err != nil {
			return "", fmt.Errorf("checking pan uniqueness: %w", err)
		}
		if !used {
			return pan, nil
		}
	}
	return "", fmt.Errorf("could not generate unique pan after %d attempts", maxAttempts)
}

// GenerateCVV returns a random 3-digit security code.
func GenerateCVV() (string, error) {
	return randomDigits(3)
}

// randomDigits produces count digits using rejection sampling to avoid
// modulo bias: only bytes < 250 are accepted before taking mod 10.
func randomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			if buf[i] < threshold {
				sb.WriteByte('0' + (buf[i] % 10))
			}
		}
	}
	return sb.String(), nil
}

func luhnCheckDigit(body string) string {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	cd := (10 - (sum % 10)) % 10
	return string('0' + byte(cd))
}

// ValidatePAN checks length, digits and the Luhn check digit. Lengths 13-19
// are accepted; this ledger issues 16.
func ValidatePAN(pan string) error {
	if pan == "" {
		return fmt.Errorf("pan is required")
	}
	if !IsDigits(pan) {
		return fmt.Errorf("pan must contain digits only")
	}
	if l := len(pan); l < 13 || l > 19 {
		return fmt.Errorf("pan length must be 13..19 digits (got %d)", l)
	}

	body := pan[:len(pan)-1]
	if cd := luhnCheckDigit(body); pan[len(pan)-1] != cd[0] {
		return fmt.Errorf("invalid luhn check digit")
	}
	return nil
}

// ValidateBIN accepts 6, 8 or 9 digit BIN prefixes.
func ValidateBIN(bin string) error {
	if !IsDigits(bin) {
		return fmt.Errorf("bin must contain digits only")
	}
	switch len(bin) {
	case 6, 8, 9:
		return nil
	}
	return fmt.Errorf("bin length must be 6, 8 or 9 (got %d)", len(bin))
}

// NormalizePAN strips spaces and dashes.
func NormalizePAN(pan string) string {
	pan = strings.ReplaceAll(pan, " ", "")
	return strings.ReplaceAll(pan, "-", "")
}

// LastN returns the last n characters of s, or s when shorter.
func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
