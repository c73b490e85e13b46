package fileutil

import (
	_ "crypto/sha512"
	"fmt"
	"io"
	"os"

	"github.com/opencontainers/go-digest"
)

// CopyFileVerified copies src to dst and re-reads dst to confirm its SHA-512
// digest matches the source. dst is removed on mismatch. The source digest is
// returned.
func CopyFileVerified(src, dst string) (digest.Digest, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = out.Close()
	}()

	digester := digest.SHA512.Digester()
	if _, err := io.Copy(io.MultiWriter(out, digester.Hash()), in); err != nil {
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	sum := digester.Digest()

	copied, err := os.Open(dst)
	if err != nil {
		return "", err
	}
	defer copied.Close()

	verifier := sum.Verifier()
	if _, err := io.Copy(verifier, copied); err != nil {
		return "", err
	}
	if !verifier.Verified() {
		_ = os.Remove(dst)
		return "", fmt.Errorf("copy digest mismatch for %s: file corrupted during copy", dst)
	}
	return sum, nil
}
