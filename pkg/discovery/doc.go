// Package discovery announces gate-web on the local network with mDNS/DNS-SD
// and finds running instances.
//
// # Service (_gate-web._tcp)
//
// gate-web registers one instance per process. The instance name is
// user-configurable and defaults to "gate-web". TXT records:
//   - v: API version (required)
//   - api: base path of the HTTP API (required)
//   - store: store backend in use (optional)
//   - id: process identifier, new on every start (optional)
//
// Browsers aggregate entries by instance name, combining the addresses seen
// on multiple interfaces into a single Service.
package discovery
