// Package settings holds the device's settings tree and its command and
// notification entry points.
//
// The topology is fixed when Init runs:
//
//	sys.name     string  read/write
//	sys.version  string  read-only
//	sys.uptime   int     read-only, seconds, >= 0
//	test.int     int     >= 0
//	test.float   float   0..100
//	test.bool    bool
//	test.mode    string  off | on | auto
//
// Settings is not safe for concurrent use. Hosts that reach it from several
// goroutines wrap every call in one mutex (see package service).
package settings
