package utils

import (
	"math/rand"
	"time"
)

// Subdomains are DNS labels, so the alphabet is lowercase-only.
const subdomainCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

var seededRand *rand.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))

// GenerateSubdomain generates a random candidate tracking subdomain of the
// given length. Callers are expected to retry on collision.
func GenerateSubdomain(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = subdomainCharset[seededRand.Intn(len(subdomainCharset))]
	}
	return string(b)
}
