// Package session authenticates users and keeps their sessions.
//
// A Manager is constructed once at startup and passed to whatever needs to
// know who is signed in; there is no package-level session state. Users are
// checked by a Provider, by default a LocalProvider holding bcrypt password
// hashes from the configuration file.
package session
