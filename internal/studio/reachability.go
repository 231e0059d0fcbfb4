package studio

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ReachabilityState int

const (
	ComposerUnreachable ReachabilityState = iota
	ComposerReachable
)

const (
	reachabilityLogFilename = "reachability.log"
	dialTimeout             = 5 * time.Second
)

// ReachabilityChecker periodically probes the composer address over TCP
// and appends transitions to a log file. Every failed probe is logged;
// to not pollute the file, only the first success after failures is.
// For example:
//
//	[2026-08-21T10:12:03+02:00] composer at localhost:8000 is OK.
//	[2026-08-21T10:12:13+02:00] composer at localhost:8000 is unreachable.
//	[2026-08-21T10:12:23+02:00] composer at localhost:8000 is unreachable.
//	[2026-08-21T10:12:33+02:00] composer at localhost:8000 is OK.
//
// The result feeds the status endpoint's connected field only; job
// polling never consults it.
type ReachabilityChecker struct {
	once          sync.Once
	lock          sync.Mutex
	state         ReachabilityState
	checkInterval time.Duration
	address       string
	logFilepath   string
	logFile       *os.File
}

func NewReachabilityChecker(serverURL string, logFolder string, checkInterval time.Duration) (*ReachabilityChecker, error) {
	address, err := dialAddress(serverURL)
	if err != nil {
		return nil, err
	}

	logFile := path.Join(logFolder, reachabilityLogFilename)
	// check that we can write into the log folder
	if _, err := os.Stat(logFolder); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("log folder %s does not exist", logFolder)
		}
		return nil, fmt.Errorf("failed to stat the log folder %s: %w", logFolder, err)
	}
	// at each start we want a clean file so try to remove it
	if err := os.Remove(logFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to delete the existing log file: %w", err)
		}
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", logFile, err)
	}

	return &ReachabilityChecker{
		state:         ComposerUnreachable,
		checkInterval: checkInterval,
		address:       address,
		logFilepath:   logFile,
		logFile:       f,
	}, nil
}

// Start probes once synchronously, then keeps probing on the check
// interval until a channel arrives on closeCh. The channel is replied
// to once the log file is flushed and closed.
func (r *ReachabilityChecker) Start(closeCh chan chan any) {
	r.do()

	r.once.Do(func() {
		go func() {
			t := time.NewTicker(r.checkInterval)
			defer t.Stop()
			for {
				select {
				case c := <-closeCh:
					if err := r.logFile.Sync(); err != nil {
						zap.S().Named("reachability").Errorf("failed to flush the log file: %s", err)
					}
					if err := r.logFile.Close(); err != nil {
						zap.S().Named("reachability").Errorf("failed to close log file %s: %s", r.logFilepath, err)
					}
					c <- struct{}{}
					close(c)
					return
				case <-t.C:
					r.do()
				}
			}
		}()
	})
}

func (r *ReachabilityChecker) State() ReachabilityState {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

func (r *ReachabilityChecker) do() {
	conn, err := net.DialTimeout("tcp", r.address, dialTimeout)
	if err != nil {
		if _, err := r.logFile.Write([]byte(fmt.Sprintf("[%s] composer at %s is unreachable.\n", time.Now().Format(time.RFC3339), r.address))); err != nil {
			zap.S().Named("reachability").Errorf("failed to write to log file %s: %s", r.logFilepath, err)
		}
		r.lock.Lock()
		r.state = ComposerUnreachable
		r.lock.Unlock()
		return
	}
	_ = conn.Close()

	// log the transition back from unreachable
	if r.State() == ComposerUnreachable {
		if _, err := r.logFile.Write([]byte(fmt.Sprintf("[%s] composer at %s is OK.\n", time.Now().Format(time.RFC3339), r.address))); err != nil {
			zap.S().Named("reachability").Errorf("failed to write to log file %s: %s", r.logFilepath, err)
		}
	}
	r.lock.Lock()
	r.state = ComposerReachable
	r.lock.Unlock()
}

// dialAddress derives the TCP probe address from the composer URL.
// Without an explicit port the scheme name is used, which the resolver
// maps to the well-known port.
func dialAddress(serverURL string) (string, error) {
	parsed, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("error parsing composer url: %w", err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("composer url %q has no hostname", serverURL)
	}
	port := parsed.Port()
	if port == "" {
		port = parsed.Scheme
	}
	return net.JoinHostPort(parsed.Hostname(), port), nil
}
