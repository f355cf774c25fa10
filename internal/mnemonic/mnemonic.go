// Package mnemonic wraps BIP-39 mnemonic generation, validation, and seed
// derivation for the vault. Word count is fixed at 24 (spec §4.1); the
// interactive typo-correction UX the teacher's wallet package offers for
// a CLI prompt has no place in an engine library and is dropped.
package mnemonic

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// WordCount is the only mnemonic length the engine accepts (256 bits of
// entropy).
const WordCount = 24

// ErrInvalidMnemonic indicates the phrase failed word-count, word-list,
// or checksum validation.
var ErrInvalidMnemonic = errors.New("mnemonic: invalid phrase")

var (
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	numberedListRegex  = regexp.MustCompile(`(?m)^\s*\d+[.):]\s*`)
	bulletListRegex    = regexp.MustCompile(`(?m)^\s*[-*•]\s*`)
)

// Normalize cleans pasted mnemonic input: lowercases, strips list
// markers and bullets, collapses whitespace, and trims.
func Normalize(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = bulletListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// Generate creates a new random 24-word BIP-39 mnemonic.
func Generate() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// Validate checks word count, BIP-39 word-list membership, and checksum.
func Validate(phrase string) error {
	if phrase == "" {
		return ErrInvalidMnemonic
	}

	normalized := Normalize(phrase)
	if len(strings.Fields(normalized)) != WordCount {
		return ErrInvalidMnemonic
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return ErrInvalidMnemonic
	}

	return nil
}

// ToSeed converts a validated mnemonic plus optional passphrase into a
// 64-byte BIP-39 seed (PBKDF2-HMAC-SHA512, 2048 rounds, salt
// "mnemonic"+passphrase — spec §4.1).
func ToSeed(phrase, passphrase string) ([]byte, error) {
	normalized := Normalize(phrase)
	if err := Validate(normalized); err != nil {
		return nil, err
	}
	return bip39.NewSeed(normalized, passphrase), nil
}
