// Package isin validates and extracts International Securities Identification
// Numbers (ISO 6166). Extraction from pasted fund lists is deterministic here
// so the agent never has to guess which 12-character strings are real
// security codes.
package isin

import "regexp"

// candidateRegex matches the shape of an ISIN: a two-letter country prefix,
// nine alphanumeric characters and a numeric check digit. Shape alone is not
// enough; Valid applies the checksum on top.
var candidateRegex = regexp.MustCompile(`\b([A-Z]{2}[A-Z0-9]{9}[0-9])\b`)

// Valid reports whether code is a checksum-valid ISIN.
func Valid(code string) bool {
	if !candidateRegex.MatchString(code) || len(code) != 12 {
		return false
	}
	return checkDigit(code[:11]) == int(code[11]-'0')
}

// Extract scans free text and returns the checksum-valid ISINs in order of
// first appearance (duplicates collapsed), plus any look-alike candidates
// that failed the checksum. A non-empty rejected list with no valid hits
// usually means the user mistyped their fund list.
func Extract(text string) (valid []string, rejected []string) {
	seen := make(map[string]bool)
	for _, candidate := range candidateRegex.FindAllString(text, -1) {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true

		if Valid(candidate) {
			valid = append(valid, candidate)
		} else {
			rejected = append(rejected, candidate)
		}
	}
	return valid, rejected
}

// checkDigit computes the ISIN check digit for the 11-character body using
// the Luhn algorithm over the digit expansion (letters become two digits,
// A=10 .. Z=35).
func checkDigit(body string) int {
	var digits []int
	for _, c := range body {
		switch {
		case c >= '0' && c <= '9':
			digits = append(digits, int(c-'0'))
		case c >= 'A' && c <= 'Z':
			v := int(c-'A') + 10
			digits = append(digits, v/10, v%10)
		default:
			return -1
		}
	}

	// Luhn: double every other digit starting from the rightmost.
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return (10 - sum%10) % 10
}
