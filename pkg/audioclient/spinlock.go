package audioclient

import (
	"runtime"
	"sync/atomic"
)

// spinLock guards the stream's offset and count fields. Critical sections
// are bounded memory copies, so a spin acquire keeps the hardware callback
// thread from ever sleeping while a client call holds the lock.
type spinLock struct {
	state atomic.Uint32
}

func (l *spinLock) lock() {
	for !l.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (l *spinLock) unlock() {
	l.state.Store(0)
}
