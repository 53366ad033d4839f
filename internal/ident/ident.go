// Package ident captures process and goroutine identity tokens. The proxy
// records a token when a physical connection is created and compares it with
// the current identity on every use to detect forks and ownership handoffs.
package ident

import (
	"bytes"
	"os"
	"runtime"
	"strconv"
)

// Token identifies the process image and goroutine that created a physical
// connection. The goroutine is the unit of ownership in Go, playing the role
// a thread id plays for runtimes with OS-level threading.
type Token struct {
	PID int
	GID uint64
}

// Current returns the identity of the calling goroutine.
func Current() Token {
	return Token{PID: os.Getpid(), GID: goroutineID()}
}

// SameProcess reports whether both tokens belong to the same process image.
func (t Token) SameProcess(o Token) bool {
	return t.PID == o.PID
}

// SameOwner reports whether both tokens belong to the same goroutine of the
// same process.
func (t Token) SameOwner(o Token) bool {
	return t.PID == o.PID && t.GID == o.GID
}

var goroutinePrefix = []byte("goroutine ")

// goroutineID parses the current goroutine id out of the runtime stack
// header ("goroutine N [running]:"). The runtime offers no API for this on
// purpose; the id is used only as an opaque ownership token and never to
// address a goroutine.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		if id, err := strconv.ParseUint(string(b[:i]), 10, 64); err == nil {
			return id
		}
	}
	return 0
}
