package validate

import (
	"fmt"
	"regexp"
	"strconv"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// nameRx allows letters, digits, single spaces and hyphens.
var nameRx = regexp.MustCompile(`^[A-Za-z0-9]+([ -][A-Za-z0-9]+)*$`)

// VaultName validates an explicit vault name. Empty is allowed upstream
// (a name is generated); this checks a provided one.
func VaultName(v string) error {
	if v == "" {
		return nil
	}
	if len(v) > 50 {
		return fmt.Errorf("name exceeds 50 characters")
	}
	if !nameRx.MatchString(v) {
		return fmt.Errorf("name contains invalid characters; allowed letters, digits, space, hyphen")
	}
	return nil
}

func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Latitude parses and range-checks a latitude query parameter.
func Latitude(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("lat must be a number")
	}
	if v < -90 || v > 90 {
		return 0, fmt.Errorf("lat out of range [-90, 90]")
	}
	return v, nil
}

// Longitude parses and range-checks a longitude query parameter.
func Longitude(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("lng must be a number")
	}
	if v < -180 || v > 180 {
		return 0, fmt.Errorf("lng out of range [-180, 180]")
	}
	return v, nil
}

// NonNegativeInt parses an optional query parameter, returning def when empty.
func NonNegativeInt(field, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", field)
	}
	return v, nil
}
