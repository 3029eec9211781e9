package uvloop

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrnoErrorText(t *testing.T) {
	require.Equal(t, "uvloop: success", OK.Error())
	require.Equal(t, "uvloop: not found", NOTFOUND.Error())
	require.Contains(t, Errno(-999).Error(), "unknown error")
}

func TestErrnoSentinelsMatchViaErrorsIs(t *testing.T) {
	require.ErrorIs(t, ErrNotFound, NOTFOUND)
	require.ErrorIs(t, ErrBusy, BUSY)
	require.NotErrorIs(t, ErrBusy, NOTFOUND)
}

func TestFromSyscallErrnoMapsCommonCases(t *testing.T) {
	require.Equal(t, OK, fromSyscallErrno(nil))
	require.Equal(t, NOTFOUND, fromSyscallErrno(syscall.ENOENT))
	require.Equal(t, ACCESS, fromSyscallErrno(syscall.EACCES))
	require.Equal(t, AGAIN, fromSyscallErrno(syscall.EAGAIN))
	require.Equal(t, BUSY, fromSyscallErrno(syscall.EBUSY))
	require.Equal(t, INVAL, fromSyscallErrno(errors.New("not a syscall errno")))
}

func TestWrapErrnoPreservesCause(t *testing.T) {
	cause := syscall.ECONNREFUSED
	wrapped := WrapErrno(cause)
	require.Error(t, wrapped)
	require.ErrorIs(t, wrapped, ErrConnRefused)
	require.ErrorIs(t, wrapped, cause)
	require.Nil(t, WrapErrno(nil))
}

func TestWrappedErrnoIsMatchesOnlyOwnErrno(t *testing.T) {
	w := &wrappedErrno{errno: TIMEDOUT, cause: nil}
	require.True(t, w.Is(TIMEDOUT))
	require.False(t, w.Is(BUSY))
	require.False(t, w.Is(errors.New("not an errno")))
}
