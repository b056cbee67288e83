// Package messaging is the facade the host application talks to: it ties
// group encryption, key fan-out and claim-driven recovery together per
// conversation.
package messaging
