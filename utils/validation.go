// utils/validation.go
package utils

import (
	"regexp"
	"strconv"
	"strings"
)

// Allows + prefix followed by up to 15 digits
var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var phoneCleaner = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// NormalizePhone strips the separators people type into phone numbers.
func NormalizePhone(phone string) string {
	return phoneCleaner.Replace(strings.TrimSpace(phone))
}

// ValidatePhone checks if a phone number is in a valid international format
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(NormalizePhone(phone))
}

// ParseUintList parses "1,2,3" style values. Blank entries are skipped.
func ParseUintList(values ...string) ([]uint, error) {
	var out []uint
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, err
			}
			out = append(out, uint(n))
		}
	}
	return out, nil
}

// ParseIntList is ParseUintList for signed values.
func ParseIntList(values ...string) ([]int, error) {
	var out []int
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
	}
	return out, nil
}
