package binary

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Digest is a raw SHA-256 sum.
type Digest [sha256.Size]byte

// String returns the lower-case hex form used in logs and errors.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes a hex SHA-256 digest. Case and surrounding
// whitespace are ignored.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(raw) != len(d) {
		return d, fmt.Errorf("digest is %d bytes, want %d", len(raw), len(d))
	}
	copy(d[:], raw)
	return d, nil
}

// HashFile streams the file at path through SHA-256.
func HashFile(path string) (Digest, error) {
	var d Digest
	f, err := os.Open(path)
	if err != nil {
		return d, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return d, fmt.Errorf("read %s: %w", path, err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Verifier checks downloaded assets against their pinned SHA-256 digest.
type Verifier struct {
	hash func(path string) (Digest, error)
}

// NewVerifier creates a verifier that hashes files from disk.
func NewVerifier() *Verifier {
	return &Verifier{hash: HashFile}
}

// Verify hashes the file at path and compares it with expectedHex. An
// expected value that is not a valid digest never matches.
func (v *Verifier) Verify(path, expectedHex string) (*VerificationResult, error) {
	actual, err := v.hash(path)
	if err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	expected, perr := ParseDigest(expectedHex)
	if perr != nil || expected != actual {
		return nil, &ChecksumMismatchError{
			Path:     path,
			Expected: strings.ToLower(strings.TrimSpace(expectedHex)),
			Actual:   actual.String(),
		}
	}

	return &VerificationResult{Method: VerificationSHA256, Digest: actual.String()}, nil
}
