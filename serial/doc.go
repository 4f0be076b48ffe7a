// Package serial is the byte transport under the instrument handles: a raw
// termios serial port for Linux with no flow control and non-blocking reads.
//
// Open a port with the bench default framing (9600 8N1):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
// Reads never wait for data (VMIN=0). Callers that need to know whether a
// response is still arriving poll InputWaiting, which reports the number of
// bytes the kernel has buffered:
//
//	n, err := port.InputWaiting()
//
// ListPorts scans /dev for communication-capable ttys; GetPortInfo adds a
// description and, for USB adapters, vendor/product/serial metadata.
//
// Open failures wrap ErrDeviceNotFound, ErrPermissionDenied or ErrDeviceInUse
// so they can be tested with errors.Is. Close is idempotent.
package serial
