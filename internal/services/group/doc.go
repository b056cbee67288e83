// Package group manages sender-key sessions: one outbound chain per
// conversation for encrypting, plus inbound copies for decrypting each
// other sender.
package group
