package utils

import "crypto/rand"

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// TokenLength is the fixed length of issued bearer tokens.
const TokenLength = 32

// GenerateToken returns a fixed-length alphanumeric token drawn from
// crypto/rand. Bytes at or above the largest multiple of the alphabet size
// are discarded so every character is equally likely.
func GenerateToken() (string, error) {
	const limit = byte(len(tokenAlphabet) * (256 / len(tokenAlphabet)))

	out := make([]byte, 0, TokenLength)
	buf := make([]byte, TokenLength)
	for len(out) < TokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == TokenLength {
				break
			}
		}
	}
	return string(out), nil
}
