package utils

import (
	"crypto/md5"
	"fmt"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// Fingerprint normalizes a question into a stable cache key: case-folded,
// whitespace-collapsed, then hashed. Two questions that differ only in
// casing or spacing share one fingerprint.
func Fingerprint(question string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	return HashString(normalized)
}
