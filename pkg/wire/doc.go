// Package wire implements the FocFleet binary packet format and the
// textual response format spoken by motor controller firmware.
//
// # Frame Layout
//
// Command packets are big-endian and start with the magic bytes AA 55,
// followed by a mode byte and a data type byte:
//
//	SINGLE:       AA 55 01 DT ID VH VL
//	MULTI_SLICE:  AA 55 02 DT START COUNT (VH VL) * COUNT
//	MULTI_STRUCT: AA 55 03 DT COUNT (ID VH VL) * COUNT
//
// DT selects the actuation quantity (angle, velocity, current). SINGLE
// addresses one device, MULTI_SLICE a contiguous id range with one value
// per id, MULTI_STRUCT an explicit list of id/value pairs.
//
// # Fixed-Point Values
//
// Setpoints travel as signed 16-bit integers holding the physical value
// multiplied by 10 and rounded to the nearest integer. That gives one
// decimal of precision over -3276.8 to 3276.7; values outside that range
// are rejected at encode time.
//
// # Responses
//
// Devices answer with UTF-8 text of the form "<deviceId>:<payload>", for
// example "7:SINGLE:1.50" or "7:HEARTBEAT". Only the leading id token is
// interpreted; the payload is free form and may contain further colons.
package wire
