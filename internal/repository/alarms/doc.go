// Package alarms implements the Store: durable persistence of the whole
// alarm set as an ordered list under a single key of the host key-value store.
//
// Every alarm is encoded as its own JSON record and the records are stored as
// a list of strings. Save always replaces the list in full. Load skips and
// counts records that fail to decode instead of defaulting their fields.
package alarms
