package utils

// MinPasswordLen is the shortest admin password accepted.
const MinPasswordLen = 8

// ValidPassword reports whether p has at least MinPasswordLen bytes and mixes
// ASCII letters with digits.
func ValidPassword(p string) bool {
	if len(p) < MinPasswordLen {
		return false
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
			letter = true
		case '0' <= r && r <= '9':
			digit = true
		}
		if letter && digit {
			return true
		}
	}
	return false
}
