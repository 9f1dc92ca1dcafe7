//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifyHidden relays SIGUSR1, the request to flush without exiting.
func notifyHidden(c chan<- os.Signal) {
	signal.Notify(c, syscall.SIGUSR1)
}
