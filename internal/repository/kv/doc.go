// Package kv implements the host key-value store the alarm list is kept in.
//
// A Store maps string keys to ordered lists of strings and replaces a list
// as a whole. FileKV keeps every key in one JSON file, SQLiteKV keeps them in
// a SQLite database and MemoryKV keeps them in process memory.
package kv
