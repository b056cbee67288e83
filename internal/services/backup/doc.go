// Package backup snapshots the device's full cryptographic state into a
// password-encrypted blob and restores it on a replacement device.
package backup
