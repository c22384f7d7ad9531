//go:build unix

package doctor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func softFileLimit() (uint64, error) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0, fmt.Errorf("getrlimit: %w", err)
	}
	return uint64(rl.Cur), nil
}
