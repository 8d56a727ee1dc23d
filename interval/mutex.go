//go:build !deadlock

package interval

import (
	"sync"
)

type mutex = sync.Mutex
