// Package svc provides definitions for the services that run on the hub.
package svc

import (
	"os"
	"os/signal"
	"time"
)

// Ctrl contains StopChan that allows to terminate all the services that
// listen the channel.
type Ctrl struct {
	StopChan chan struct{}
}

// Wait blocks until an interrupt arrives or StopChan is closed, then pauses
// for the given timeout to give the services time to shut down gracefully.
func (c *Ctrl) Wait(t time.Duration) {
	inter := make(chan os.Signal, 1)
	signal.Notify(inter, os.Interrupt)

	select {
	case <-inter:
		c.Terminate()
	case <-c.StopChan:
	}

	<-time.NewTimer(t).C
}

// Terminate closes StopChan to signal all the services to shutdown.
func (c *Ctrl) Terminate() {
	select {
	case <-c.StopChan:
	default:
		close(c.StopChan)
	}
}
