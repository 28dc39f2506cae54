// Package persistence saves gate client runtime state that must survive a
// restart, currently the live web sessions, as a JSON file.
package persistence
