package message

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint hashes a content triple into a stable change-detection key.
// SHA-256 over "markdown|plainText|html", base64-encoded. Distinct content
// must essentially never collide, so a cryptographic hash rather than a
// checksum.
func Fingerprint(markdown, plainText, html string) string {
	sum := sha256.Sum256([]byte(markdown + "|" + plainText + "|" + html))
	return base64.StdEncoding.EncodeToString(sum[:])
}
