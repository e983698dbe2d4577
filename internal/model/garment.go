package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Garment is a catalog entry that users can prove ownership of.
type Garment struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Brand        string    `json:"brand"`
	ImageURL     string    `json:"image_url"`
	ImageMime    string    `json:"image_mime,omitempty"`
	SecurityCode string    `json:"security_code,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Public returns a copy without the security code, safe to hand to non-admins.
func (g Garment) Public() Garment {
	g.SecurityCode = ""
	return g
}

// DefaultBrand is used on access requests for garments without a brand label.
const DefaultBrand = "AXSER"

var securityCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

// ErrInvalidCode is returned when a code is not exactly six ASCII digits.
var ErrInvalidCode = errors.New("security code must be exactly 6 numeric digits")

// ErrMissingFields is returned when a required garment field is empty.
var ErrMissingFields = errors.New("all fields are mandatory")

// ValidateSecurityCode accepts exactly six ASCII digits and nothing else.
func ValidateSecurityCode(code string) error {
	if !securityCodePattern.MatchString(code) {
		return ErrInvalidCode
	}
	return nil
}

// ValidateGarment checks the catalog form: every field present, code well-formed.
func ValidateGarment(name, brand, imageURL, code string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(brand) == "" ||
		strings.TrimSpace(imageURL) == "" || strings.TrimSpace(code) == "" {
		return ErrMissingFields
	}
	return ValidateSecurityCode(strings.TrimSpace(code))
}

// SameGarmentName compares names the way the admin dashboard matches requests
// to catalog entries.
func SameGarmentName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
