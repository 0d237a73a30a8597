// Package protocol owns the AMQP 0-9-1 frame model and method codec.
//
// Ownership boundary:
// - frame variants (method, generic pass-through, generic basic, heartbeat)
// - class/method dispatch and per-method field layouts
// - the protocol header preface
//
// Primitive encodings live in protocol/wire; the outer envelope lives in
// protocol/frame. Nothing here logs or retries: every failure is returned to
// the caller, which owns the connection and decides whether to close it.
package protocol
