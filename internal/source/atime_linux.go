//go:build linux

package source

import (
	"time"

	"golang.org/x/sys/unix"
)

// accessTime returns the last access time of path, or the zero time when
// it cannot be read. Filesystems mounted relatime update access times
// lazily, so read detection stays best-effort.
func accessTime(path string) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}
	}
	return time.Unix(st.Atim.Unix())
}
