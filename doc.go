// Package instrument talks to RS-232 bench instruments with SCPI text
// commands.
//
// A Handle owns the line protocol: every command is written with a line
// terminator, and responses are read by polling the port until no more
// bytes arrive. Opening a handle puts the instrument in remote mode and
// caches its *IDN? identity.
//
//	h, err := instrument.Open("/dev/ttyUSB0")
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//
//	inst, err := h.Classify()
//	if dmm, ok := inst.(*instrument.Multimeter); ok {
//		v, err := dmm.MeasureVoltageDC(instrument.Default, instrument.Default)
//		...
//	}
//
// Classify looks the identity up in a Registry and returns a Multimeter,
// FunctionGenerator or PowerSupply that shares the handle's port. A Handle
// and everything derived from it must be used from one goroutine at a time.
package instrument
