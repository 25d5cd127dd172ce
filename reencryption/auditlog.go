package reencryption

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KPrasch/nucypher/policy"
)

// AuditLog is a local append-only record of served reencryption requests,
// one line per entry: request_id, bob_vk, hrac, ts. Persistence is best
// effort — a write failure is logged by the caller but must never block or
// fail the reencryption response itself.
type AuditLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenAuditLog opens (creating if necessary) the append-only log file at
// path.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("reencryption: opening audit log %s: %w", path, err)
	}
	return &AuditLog{f: f}, nil
}

// Record appends one entry. Errors are returned so the caller can log them,
// but Service.Reencrypt never lets a Record failure affect the response it
// has already computed.
func (a *AuditLog) Record(requestID uuid.UUID, bobVK []byte, hrac policy.HRAC, ts time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	line := fmt.Sprintf("%s,%x,%s,%d\n", requestID, bobVK, hrac.String(), ts.Unix())
	_, err := a.f.WriteString(line)
	return err
}

// Close closes the underlying file.
func (a *AuditLog) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.f.Close()
}
