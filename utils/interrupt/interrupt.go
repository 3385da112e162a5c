// Package interrupt runs registered shutdown handlers when the process
// receives an interrupt or termination signal.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var (
	mx       sync.Mutex
	handlers []func()
	once     sync.Once
)

// AddHandler registers fn to run, in registration order, on SIGINT or
// SIGTERM. The first registration installs the signal listener.
func AddHandler(fn func()) {
	mx.Lock()
	handlers = append(handlers, fn)
	mx.Unlock()
	once.Do(listen)
}

func listen() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		mx.Lock()
		hs := make([]func(), len(handlers))
		copy(hs, handlers)
		mx.Unlock()
		for _, fn := range hs {
			fn()
		}
		os.Exit(0)
	}()
}
