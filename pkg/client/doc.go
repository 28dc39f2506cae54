// Package client assembles the gate client: the realtime database, the
// session manager, the command sender, the gate monitor, the local command
// history, the event trace and the mDNS advertiser.
//
// A Client is built once per process with Open and handed to the front
// end (HTTP server or console). Close releases everything in reverse
// order of acquisition.
package client
