// Package transaction guards the shadow data directory against concurrent
// provisioning runs.
package transaction

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const (
	// StaleLockThreshold is the age after which a lock whose holder cannot
	// be checked is taken over. Live holders on this host keep their lock
	// however old it is.
	StaleLockThreshold = 10 * time.Minute

	// LockFileName is created in the data directory while provisioning.
	LockFileName = "shadow.lock"
)

// ErrLockExists means another live process holds the data directory.
var ErrLockExists = errors.New("data directory is locked: another shadow process may be provisioning")

// Holder describes the process recorded in a lock file.
type Holder struct {
	PID      int
	Hostname string
	Acquired time.Time
}

func (h Holder) encode() string {
	return fmt.Sprintf("pid=%d\nhost=%s\nacquired=%s\n",
		h.PID, h.Hostname, h.Acquired.UTC().Format(time.RFC3339Nano))
}

// ReadHolder parses the lock file at path. Unknown keys are ignored.
func ReadHolder(path string) (Holder, error) {
	f, err := os.Open(path)
	if err != nil {
		return Holder{}, err
	}
	defer f.Close()

	var h Holder
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			h.PID, _ = strconv.Atoi(value)
		case "host":
			h.Hostname = value
		case "acquired":
			h.Acquired, _ = time.Parse(time.RFC3339Nano, value)
		}
	}
	return h, sc.Err()
}

// Lock is a held data-directory lock.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the advisory lock in dir without waiting. A lock whose
// holder on this host is gone is taken over once, as is a lock older than
// StaleLockThreshold whose holder cannot be checked.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	path := filepath.Join(dir, LockFileName)
	file, err := createExclusive(path)
	if errors.Is(err, os.ErrExist) {
		if !isStale(ctx, path) {
			return nil, lockedError(path)
		}
		_ = os.Remove(path)
		file, err = createExclusive(path)
		if errors.Is(err, os.ErrExist) {
			return nil, lockedError(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}

	host, _ := os.Hostname()
	holder := Holder{PID: os.Getpid(), Hostname: host, Acquired: time.Now()}
	if err := writeHolder(file, holder); err != nil {
		file.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

func writeHolder(file *os.File, h Holder) error {
	if _, err := file.WriteString(h.encode()); err != nil {
		return err
	}
	return file.Sync()
}

var createExclusive = func(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
}

func lockedError(path string) error {
	if h, err := ReadHolder(path); err == nil && h.PID > 0 {
		return fmt.Errorf("%w (%s, pid %d)", ErrLockExists, path, h.PID)
	}
	return fmt.Errorf("%w (%s)", ErrLockExists, path)
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Calling it more than once is safe and never
// removes a lock taken by someone else afterwards.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	l.file.Close()
	l.file = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// isStale reports whether the lock at path may be taken over. A readable
// holder on this host is stale only once its process is gone; anything
// else falls back to the lock's age.
func isStale(ctx context.Context, path string) bool {
	host, _ := os.Hostname()
	if h, err := ReadHolder(path); err == nil && h.PID > 0 && h.Hostname == host {
		return !holderAlive(ctx, h)
	}

	info, err := os.Stat(path)
	return err == nil && time.Since(info.ModTime()) > StaleLockThreshold
}

// holderAlive reports whether h's process still runs. A process created
// after the lock was written has reused the pid. Lookup errors count as
// alive.
func holderAlive(ctx context.Context, h Holder) bool {
	pid := int32(h.PID)
	exists, err := process.PidExistsWithContext(ctx, pid)
	if err != nil {
		return true
	}
	if !exists {
		return false
	}
	if h.Acquired.IsZero() {
		return true
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return false
	}
	if err != nil {
		return true
	}
	created, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return true
	}
	return !time.UnixMilli(created).After(h.Acquired.Add(time.Second))
}
