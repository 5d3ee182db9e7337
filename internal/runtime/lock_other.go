//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package runtime

import "os"

// Directory locking is only enforced where flock is available.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
