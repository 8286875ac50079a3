package binary

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func TestVerify(t *testing.T) {
	path, digest := writeTempFile(t, "osquery release bytes")

	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{name: "exact", expected: digest},
		{name: "upper_case", expected: strings.ToUpper(digest)},
		{name: "surrounding_whitespace", expected: "  " + digest + "\n"},
		{name: "wrong_digest", expected: strings.Repeat("0", 64), wantErr: true},
		{name: "empty_expected", expected: "", wantErr: true},
		{name: "truncated", expected: digest[:62], wantErr: true},
		{name: "not_hex", expected: strings.Repeat("z", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewVerifier().Verify(path, tt.expected)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrChecksumMismatch)

				var mismatch *ChecksumMismatchError
				require.ErrorAs(t, err, &mismatch)
				assert.Equal(t, digest, mismatch.Actual)
				assert.Equal(t, path, mismatch.Path)
				assert.Contains(t, err.Error(), digest)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, VerificationSHA256, res.Method)
			assert.Equal(t, digest, res.Digest)
		})
	}
}

func TestVerify_MissingFile(t *testing.T) {
	_, err := NewVerifier().Verify(filepath.Join(t.TempDir(), "missing"), strings.Repeat("a", 64))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChecksumMismatch)
}

func TestHashFile(t *testing.T) {
	path, want := writeTempFile(t, "test content for checksum")

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got.String())
}

func TestHashFile_EmptyFile(t *testing.T) {
	path, _ := writeTempFile(t, "")

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got.String())
}

func TestParseDigest(t *testing.T) {
	_, digest := writeTempFile(t, "x")

	d, err := ParseDigest(" " + strings.ToUpper(digest) + "\n")
	require.NoError(t, err)
	assert.Equal(t, digest, d.String())

	for _, bad := range []string{"", "abc", digest + "00", strings.Repeat("g", 64)} {
		_, err := ParseDigest(bad)
		assert.Error(t, err, bad)
	}
}

func TestVerify_HashError(t *testing.T) {
	v := &Verifier{hash: func(string) (Digest, error) { return Digest{}, os.ErrPermission }}
	_, err := v.Verify("artifact", strings.Repeat("a", 64))
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestVerificationMethodString(t *testing.T) {
	assert.Equal(t, "none", VerificationNone.String())
	assert.Equal(t, "skipped", VerificationSkipped.String())
	assert.Equal(t, "sha256", VerificationSHA256.String())
	assert.Equal(t, "unknown", VerificationMethod(99).String())
}
