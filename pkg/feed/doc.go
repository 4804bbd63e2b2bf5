// Package feed turns operator-edited targets files into setpoint loads.
//
// A targets file is a grid of rows, one setpoint per line:
//
//	3,90.5
//	4,-12.0
//
// CSV files (by extension) are parsed with a CSV reader; any other
// extension is parsed line by line, splitting on comma when present,
// otherwise on whitespace. Rows whose first field is not all digits
// are directives that tune the following distribution run:
//
//	group_size,5
//	per_device_hz,20
//	max_rounds,100
//	data_type,velocity
//	packet_mode,struct
//
// Unknown directive keys are ignored, which doubles as a comment
// mechanism. Directive values, however, must parse: an unreadable
// group size or an unknown data type rejects the whole file rather
// than silently running the fleet with defaults.
//
// The Watcher polls a targets file on an interval and reports a parsed
// Update whenever the file content hash changes. Detection is by
// content, not modification time, so touch(1) and editors that rewrite
// identical bytes do not retrigger a run.
package feed
