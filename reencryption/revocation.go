package reencryption

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/KPrasch/nucypher/policy"
)

// RevocationSet is the operator's read-mostly set of revoked policies,
// persisted on disk as one hex-encoded HRAC per line. Writes are rare
// (policy revocation) and protected by a read-write lock so concurrent
// reencryption requests never block each other on a revocation check.
type RevocationSet struct {
	mu   sync.RWMutex
	path string
	set  map[policy.HRAC]struct{}
}

// LoadRevocationSet reads an existing revocation file at path, creating an
// empty in-memory set if the file does not yet exist.
func LoadRevocationSet(path string) (*RevocationSet, error) {
	r := &RevocationSet{path: path, set: map[policy.HRAC]struct{}{}}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reencryption: opening revocation set %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		h, err := policy.HRACFromHex(line)
		if err != nil {
			return nil, fmt.Errorf("reencryption: malformed revocation entry %q: %w", line, err)
		}
		r.set[h] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reencryption: reading revocation set %s: %w", path, err)
	}
	return r, nil
}

// IsRevoked reports whether hrac has been revoked.
func (r *RevocationSet) IsRevoked(hrac policy.HRAC) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.set[hrac]
	return ok
}

// Revoke adds hrac to the set and appends it to the on-disk file. Returns
// an error if the file write fails; the in-memory set is still updated so
// the node behaves consistently with itself even if persistence failed.
func (r *RevocationSet) Revoke(hrac policy.HRAC) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.set[hrac]; ok {
		return nil
	}
	r.set[hrac] = struct{}{}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("reencryption: opening revocation set %s for append: %w", r.path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(hrac.String() + "\n"); err != nil {
		return fmt.Errorf("reencryption: writing revocation entry: %w", err)
	}
	return nil
}
