// Package fanout delivers group session keys to recipients over their
// pairwise channels and installs the keys this device claims.
package fanout
