// Package local provides the process and download services an install run
// uses on the machine it is executing on.
package local

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Command describes a process to start.
type Command struct {
	// Name is the executable to run.
	Name string

	// Args are passed verbatim; no shell is involved unless Name is one.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra environment variables appended to the process environment.
	Env map[string]string
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner starts processes and waits for them to exit.
type Runner interface {
	// Run executes cmd to completion. A non-zero exit yields both a Result
	// and an *ExitError.
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Request describes a file to fetch.
type Request struct {
	// URL is the source location.
	URL string

	// FileName is the name of the file inside the cache directory. When
	// empty the last URL path segment is used.
	FileName string

	// SHA256 is the expected hex digest. Empty skips verification.
	SHA256 string
}

// Downloader fetches remote files to the local disk.
type Downloader interface {
	// Download stores the file and returns its local path.
	Download(ctx context.Context, req Request) (string, error)
}

// ExitError is returned when a process exits with a non-zero code.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// DownloadError wraps a failed fetch.
type DownloadError struct {
	// URL is the location that failed.
	URL string

	// Err is the underlying error.
	Err error
}

func (e *DownloadError) Error() string {
	return "download " + e.URL + ": " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
