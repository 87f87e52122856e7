// Package vin validates and decodes 17-character Vehicle Identification Numbers
// using the North American check-digit scheme (49 CFR 565).
package vin

import (
	"errors"
	"strings"
	"time"
)

const Length = 17

var (
	ErrLength         = errors.New("VIN must be 17 characters")
	ErrCharacter      = errors.New("VIN contains an invalid character")
	ErrCheckDigit     = errors.New("VIN check digit does not match")
	errNoTranslitChar = errors.New("no transliteration")
)

var weights = [Length]int{8, 7, 6, 5, 4, 3, 2, 10, 0, 9, 8, 7, 6, 5, 4, 3, 2}

// Model-year codes repeat on a 30 year cycle starting at 1980.
const yearCodes = "ABCDEFGHJKLMNPRSTVWXY123456789"

// Decoded holds what can be read from a VIN without an external lookup.
type Decoded struct {
	VIN       string `json:"vin"`
	WMI       string `json:"wmi"`
	Region    string `json:"region"`
	ModelYear int    `json:"model_year,omitempty"`
	Serial    string `json:"serial"`
}

// Normalize upper-cases and strips surrounding whitespace and inner spaces or dashes.
func Normalize(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	return strings.NewReplacer(" ", "", "-", "").Replace(v)
}

// Validate checks length, alphabet and check digit of an already normalized VIN.
func Validate(v string) error {
	if len(v) != Length {
		return ErrLength
	}
	sum := 0
	for i := 0; i < Length; i++ {
		n, err := transliterate(v[i])
		if err != nil {
			return ErrCharacter
		}
		sum += n * weights[i]
	}
	want := byte('0' + sum%11)
	if sum%11 == 10 {
		want = 'X'
	}
	if v[8] != want {
		return ErrCheckDigit
	}
	return nil
}

// Decode validates v and returns its decoded parts. The model year is resolved to
// the most recent cycle that is not later than next calendar year.
func Decode(v string, now time.Time) (Decoded, error) {
	v = Normalize(v)
	if err := Validate(v); err != nil {
		return Decoded{}, err
	}
	return Decoded{
		VIN:       v,
		WMI:       v[:3],
		Region:    region(v[0]),
		ModelYear: modelYear(v[9], now.Year()+1),
		Serial:    v[11:],
	}, nil
}

func transliterate(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'H':
		return int(c-'A') + 1, nil
	case c >= 'J' && c <= 'N':
		return int(c-'J') + 1, nil
	case c == 'P':
		return 7, nil
	case c == 'R':
		return 9, nil
	case c >= 'S' && c <= 'Z':
		return int(c-'S') + 2, nil
	}
	return 0, errNoTranslitChar
}

func modelYear(code byte, maxYear int) int {
	idx := strings.IndexByte(yearCodes, code)
	if idx < 0 {
		return 0
	}
	year := 1980 + idx
	for year+30 <= maxYear {
		year += 30
	}
	return year
}

func region(c byte) string {
	switch {
	case c >= '1' && c <= '5':
		return "North America"
	case c == '6' || c == '7':
		return "Oceania"
	case c == '8' || c == '9':
		return "South America"
	case c >= 'A' && c <= 'H':
		return "Africa"
	case c >= 'J' && c <= 'R':
		return "Asia"
	case c >= 'S' && c <= 'Z':
		return "Europe"
	}
	return "Unknown"
}
