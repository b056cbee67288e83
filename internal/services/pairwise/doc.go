// Package pairwise manages the ratcheting sessions between this device and
// each remote device, including establishment from published key bundles.
package pairwise
