package backup

import "strings"

// Strength buckets for backup passwords. The score is advisory; no
// operation refuses a weak password.
const (
	StrengthVeryWeak = iota
	StrengthWeak
	StrengthFair
	StrengthGood
	StrengthStrong
)

// commonPasswords are rejected outright regardless of length or mix.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"passw0rd":   {},
	"123456":     {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty":     {},
	"qwertyuiop": {},
	"letmein":    {},
	"iloveyou":   {},
	"admin":      {},
	"welcome":    {},
	"monkey":     {},
	"dragon":     {},
	"abc123":     {},
}

// CheckPasswordStrength scores a candidate backup password from 0 (very
// weak) to 4 (strong) based on length and character class mix, with
// advisory messages explaining what holds the score down. Known common
// passwords score 0; a password of one repeated character or one
// sequential run is penalised.
func CheckPasswordStrength(password string) (int, []string) {
	if password == "" {
		return StrengthVeryWeak, []string{"choose a password"}
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return StrengthVeryWeak, []string{"this is a commonly used password"}
	}

	var advice []string
	if len(password) < 12 {
		advice = append(advice, "use at least 12 characters")
	}
	if classCount(password) < 3 {
		advice = append(advice, "mix upper and lower case, digits and symbols")
	}

	score := lengthTier(len(password)) + classCount(password) - 1
	if allSameRune(password) {
		score -= 2
		advice = append(advice, "avoid repeating a single character")
	}
	if sequentialRun(password) {
		score -= 2
		advice = append(advice, "avoid sequential characters")
	}
	if score < StrengthVeryWeak {
		score = StrengthVeryWeak
	}
	if score > StrengthStrong {
		score = StrengthStrong
	}
	return score, advice
}

func lengthTier(n int) int {
	switch {
	case n >= 16:
		return 3
	case n >= 12:
		return 2
	case n >= 8:
		return 1
	default:
		return 0
	}
}

func classCount(password string) int {
	var lower, upper, digit, other bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, set := range []bool{lower, upper, digit, other} {
		if set {
			n++
		}
	}
	return n
}

func allSameRune(password string) bool {
	runes := []rune(password)
	for _, r := range runes[1:] {
		if r != runes[0] {
			return false
		}
	}
	return true
}

// sequentialRun reports whether the whole password is one ascending or
// descending run like "abcdef" or "987654".
func sequentialRun(password string) bool {
	runes := []rune(password)
	if len(runes) < 3 {
		return false
	}
	asc, desc := true, true
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[i-1]+1 {
			asc = false
		}
		if runes[i] != runes[i-1]-1 {
			desc = false
		}
	}
	return asc || desc
}
