package instrument

import "time"

// Observer receives a callback for every exchange on a handle. It is the
// hook metrics collectors attach to.
type Observer interface {
	CommandWritten(port, command string)
	ResponseRead(port string, bytes int)
	QueryCompleted(port string, elapsed time.Duration)
	DeviceError(port, command, response string)
}

type nopObserver struct{}

func (nopObserver) CommandWritten(string, string) {}
func (nopObserver) ResponseRead(string, int) {}
func (nopObserver) QueryCompleted(string, time.Duration) {}
func (nopObserver) DeviceError(string, string, string) {}
