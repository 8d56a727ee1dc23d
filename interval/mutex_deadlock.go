//go:build deadlock

package interval

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

type mutex = deadlock.Mutex

func init() {
	deadlock.Opts.DeadlockTimeout = 20 * time.Second
}
