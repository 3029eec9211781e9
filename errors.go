// Package uvloop's error taxonomy: a fixed enumeration of negative status
// codes (spec §6/§7), plus wrapping helpers that preserve an errors.Is/As
// cause chain back to the originating syscall or OS error.
package uvloop

import (
	"errors"
	"fmt"
	"syscall"
)

// Errno is a normalized status code. Zero means success; all library
// operations that can fail synchronously return a negative Errno (by
// convention, Errno values themselves are defined as small negative-leaning
// sentinels, mirrored into a Go error via the Error() method).
type Errno int

const (
	// OK indicates success.
	OK Errno = 0
	// NOTFOUND indicates a lookup (fd, handle, timer) found nothing.
	NOTFOUND Errno = -1
	// ACCESS indicates a permission error.
	ACCESS Errno = -2
	// BUSY indicates the resource is in use and cannot be acted on right now.
	BUSY Errno = -3
	// EXISTS indicates a duplicate registration (e.g. fd already registered).
	EXISTS Errno = -4
	// INVAL indicates invalid arguments.
	INVAL Errno = -5
	// AGAIN indicates a transient would-block condition.
	AGAIN Errno = -6
	// NOMEM indicates allocation failure.
	NOMEM Errno = -7
	// CANCELED indicates the operation was cancelled before completion.
	CANCELED Errno = -8
	// CONNREFUSED indicates a refused connection.
	CONNREFUSED Errno = -9
	// TIMEDOUT indicates an operation exceeded its deadline.
	TIMEDOUT Errno = -10
	// NOSYS indicates the operation isn't implemented on this platform.
	NOSYS Errno = -11
	// PIPE indicates a broken-pipe condition.
	PIPE Errno = -12
	// EOF indicates the peer closed its end, or the backend observed an
	// error/hang-up condition on a watched fd (spec §4.2: "Error/hang-up
	// is merged with the user's requested readable/writable bits so the
	// reader path is always invoked to discover the error").
	EOF Errno = -13
)

var errnoText = map[Errno]string{
	OK:          "success",
	NOTFOUND:    "not found",
	ACCESS:      "permission denied",
	BUSY:        "resource busy",
	EXISTS:      "already exists",
	INVAL:       "invalid argument",
	AGAIN:       "resource temporarily unavailable",
	NOMEM:       "out of memory",
	CANCELED:    "operation canceled",
	CONNREFUSED: "connection refused",
	TIMEDOUT:    "operation timed out",
	NOSYS:       "function not implemented",
	PIPE:        "broken pipe",
	EOF:         "end of file",
}

// Error implements the error interface, so an Errno can be returned directly
// and compared with errors.Is against the package-level sentinels below.
func (e Errno) Error() string {
	if s, ok := errnoText[e]; ok {
		return fmt.Sprintf("uvloop: %s", s)
	}
	return fmt.Sprintf("uvloop: unknown error %d", int(e))
}

// Sentinel errors, one per Errno, so callers can errors.Is(err, uvloop.ErrBusy).
var (
	ErrNotFound    error = NOTFOUND
	ErrAccess      error = ACCESS
	ErrBusy        error = BUSY
	ErrExists      error = EXISTS
	ErrInval       error = INVAL
	ErrAgain       error = AGAIN
	ErrNoMem       error = NOMEM
	ErrCanceled    error = CANCELED
	ErrConnRefused error = CONNREFUSED
	ErrTimedOut    error = TIMEDOUT
	ErrNoSys       error = NOSYS
	ErrPipe        error = PIPE
	ErrEOF         error = EOF
)

// fromSyscallErrno maps a raw platform errno into the normalized taxonomy.
// Unknown errnos, and errors that are not a syscall.Errno, map to INVAL; it
// returns the bare Errno. WrapErrno keeps the original error as the Unwrap
// cause of a wrappedErrno, so errors.Is still matches the raw syscall.Errno.
func fromSyscallErrno(err error) Errno {
	if err == nil {
		return OK
	}
	var sysErr syscall.Errno
	if !errors.As(err, &sysErr) {
		return INVAL
	}
	switch sysErr {
	case syscall.ENOENT:
		return NOTFOUND
	case syscall.EACCES, syscall.EPERM:
		return ACCESS
	case syscall.EBUSY, syscall.EAGAIN:
		if sysErr == syscall.EAGAIN {
			return AGAIN
		}
		return BUSY
	case syscall.EEXIST:
		return EXISTS
	case syscall.EINVAL:
		return INVAL
	case syscall.ENOMEM:
		return NOMEM
	case syscall.ECANCELED:
		return CANCELED
	case syscall.ECONNREFUSED:
		return CONNREFUSED
	case syscall.ETIMEDOUT:
		return TIMEDOUT
	case syscall.ENOSYS:
		return NOSYS
	case syscall.EPIPE:
		return PIPE
	default:
		return INVAL
	}
}

// wrappedErrno pairs a normalized Errno with the original cause, so that
// errors.Is works against both the Errno sentinel and the underlying OS
// error (e.g. the exact syscall.Errno or a context.DeadlineExceeded).
type wrappedErrno struct {
	errno Errno
	cause error
}

func (w *wrappedErrno) Error() string {
	if w.cause != nil {
		return fmt.Sprintf("%s: %v", w.errno.Error(), w.cause)
	}
	return w.errno.Error()
}

func (w *wrappedErrno) Unwrap() error { return w.cause }

func (w *wrappedErrno) Is(target error) bool {
	var te Errno
	if errors.As(target, &te) {
		return te == w.errno
	}
	return false
}

// WrapErrno normalizes cause into the Errno taxonomy while preserving the
// original error in the Unwrap chain.
func WrapErrno(cause error) error {
	if cause == nil {
		return nil
	}
	return &wrappedErrno{errno: fromSyscallErrno(cause), cause: cause}
}

// Standard loop-lifecycle errors (not part of the Errno taxonomy since they
// describe API misuse rather than an operation's outcome status).
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a loop that is already running.
	ErrLoopAlreadyRunning = errors.New("uvloop: loop is already running")
	// ErrLoopTerminated is returned when operations are attempted on a terminated loop.
	ErrLoopTerminated = errors.New("uvloop: loop has been terminated")
	// ErrReentrantRun is returned when Run() is called from within the loop itself (spec.md §9 open question).
	ErrReentrantRun = errors.New("uvloop: cannot call Run() from within the loop")
	// ErrHandleClosing is returned by start/stop-class operations on a handle already closing.
	ErrHandleClosing = errors.New("uvloop: handle is closing")
	// ErrLoopHasActiveHandles is returned by Close when Alive() is still true:
	// a handle is still active or mid-close (spec.md §6 loop_close "fails if
	// any handle is still alive").
	ErrLoopHasActiveHandles error = BUSY
)
