package ltp

import (
	_ "crypto/sha512"
	"fmt"
	"os"

	"github.com/opencontainers/go-digest"
)

// SumsAlgorithmLabel is the algorithm name written into sidecars and sent to
// backends as the hash type.
const SumsAlgorithmLabel = "Sha512"

// DigestFile computes the SHA-512 digest of the file at path.
func DigestFile(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	d, err := digest.SHA512.FromReader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return d, nil
}

// WriteSums writes "Sha512 <hex>" to path.
func WriteSums(path string, d digest.Digest) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	if d.Algorithm() != digest.SHA512 {
		return fmt.Errorf("sums sidecar requires sha512, got %s", d.Algorithm())
	}
	line := SumsAlgorithmLabel + " " + d.Encoded()
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		return fmt.Errorf("write sums %s: %w", path, err)
	}
	return nil
}
