//go:build linux

package worker

import "golang.org/x/sys/unix"

// raisePriority lowers the nice value of the calling thread. The caller must
// have locked itself to the OS thread.
func raisePriority(nice int) error {
	if nice == 0 {
		return nil
	}
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}
