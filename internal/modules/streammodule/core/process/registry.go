// Package process tracks the engine processes spawned by the stream module.
// Processes are keyed by the output path they write, which is the only thing
// a stop request shares with the start request it is meant to end. At most
// one process is registered per output path.
//
// Termination escalates from SIGTERM to SIGKILL and targets the whole process
// group, so helper children spawned by the engine go down with it.
package process

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
)

// DefaultGracePeriod is how long a process gets to exit after SIGTERM
const DefaultGracePeriod = 5 * time.Second

// Entry tracks a running engine process
type Entry struct {
	PID        int       `json:"pid"`
	RequestID  string    `json:"request_id"`
	OutputPath string    `json:"output_path"`
	Protocol   string    `json:"protocol"`
	StartTime  time.Time `json:"start_time"`

	// done is closed once the process has been reaped
	done <-chan struct{}
}

// NewEntry creates an entry whose exit is signalled by done
func NewEntry(pid int, requestID, outputPath, protocol string, done <-chan struct{}) *Entry {
	return &Entry{
		PID:        pid,
		RequestID:  requestID,
		OutputPath: outputPath,
		Protocol:   protocol,
		StartTime:  time.Now(),
		done:       done,
	}
}

// Registry provides process tracking for the engine
type Registry struct {
	entries map[string]*Entry
	mu      sync.RWMutex
	logger  hclog.Logger
	grace   time.Duration
}

// NewRegistry creates an empty registry
func NewRegistry(logger hclog.Logger, grace time.Duration) *Registry {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Registry{
		entries: make(map[string]*Entry),
		logger:  logger,
		grace:   grace,
	}
}

// Register records a process as the writer of its output path
func (r *Registry) Register(entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.OutputPath] = entry

	r.logger.Info("registered engine process",
		"pid", entry.PID,
		"request_id", entry.RequestID,
		"output", entry.OutputPath)
}

// Unregister removes the entry for outputPath if it still belongs to pid
func (r *Registry) Unregister(outputPath string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[outputPath]; ok && entry.PID == pid {
		delete(r.entries, outputPath)
		r.logger.Info("unregistered engine process",
			"pid", pid,
			"output", outputPath)
	}
}

// Lookup returns the entry writing outputPath, or nil
func (r *Registry) Lookup(outputPath string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[outputPath]
}

// Entries returns a snapshot of all registered processes
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	return out
}

// Count returns the number of registered processes
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Terminate stops the process writing outputPath and waits for it to be reaped.
// It reports whether a process was found.
func (r *Registry) Terminate(outputPath string) (bool, error) {
	r.mu.Lock()
	entry, ok := r.entries[outputPath]
	if ok {
		delete(r.entries, outputPath)
	}
	r.mu.Unlock()

	if !ok {
		return false, nil
	}

	r.logger.Info("terminating engine process",
		"pid", entry.PID,
		"request_id", entry.RequestID,
		"output", outputPath)

	return true, r.kill(entry)
}

// TerminateAll stops every registered process
func (r *Registry) TerminateAll() error {
	r.mu.Lock()
	entries := make([]*Entry, 0, len(r.entries))
	for path, entry := range r.entries {
		entries = append(entries, entry)
		delete(r.entries, path)
	}
	r.mu.Unlock()

	var firstErr error
	for _, entry := range entries {
		if err := r.kill(entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// kill sends SIGTERM to the process group, escalating to SIGKILL after the grace period
func (r *Registry) kill(entry *Entry) error {
	pid := entry.PID

	if err := syscall.Kill(pid, 0); err != nil {
		// Already gone
		return nil
	}

	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		pgid = 0
	}

	signalGroup(pid, pgid, syscall.SIGTERM)
	if r.waitExit(entry, r.grace) {
		return nil
	}

	r.logger.Warn("process did not terminate gracefully, sending SIGKILL", "pid", pid)

	signalGroup(pid, pgid, syscall.SIGKILL)
	if r.waitExit(entry, 2*time.Second) {
		return nil
	}

	return fmt.Errorf("process %d could not be killed", pid)
}

// signalGroup signals the whole group when the process leads its own group,
// otherwise just the process.
func signalGroup(pid, pgid int, sig syscall.Signal) {
	if pgid == pid {
		_ = syscall.Kill(-pgid, sig)
		return
	}
	_ = syscall.Kill(pid, sig)
}

// waitExit waits for the entry's done channel, or polls the pid when there is none
func (r *Registry) waitExit(entry *Entry, timeout time.Duration) bool {
	if entry.done != nil {
		select {
		case <-entry.done:
			return true
		case <-time.After(timeout):
			return false
		}
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(entry.PID, 0); err != nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
