package progress

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// questionIDLength is the number of hex characters kept from the digest
const questionIDLength = 16

// NormalizePrompt trims the prompt, collapses whitespace runs to a single
// space and lowercases it.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(strings.Join(strings.Fields(prompt), " "))
}

// QuestionID returns the stable identifier for a prompt. Prompts that differ
// only in whitespace or letter case share an id.
func QuestionID(prompt string) string {
	sum := sha256.Sum256([]byte(NormalizePrompt(prompt)))
	return hex.EncodeToString(sum[:])[:questionIDLength]
}
