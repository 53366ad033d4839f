package ident

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurrent(t *testing.T) {
	tok := Current()
	assert.Equal(t, os.Getpid(), tok.PID)
	assert.NotZero(t, tok.GID)
}

func TestStableWithinGoroutine(t *testing.T) {
	a := Current()
	b := Current()
	assert.True(t, a.SameOwner(b))
}

func TestDiffersAcrossGoroutines(t *testing.T) {
	here := Current()

	ch := make(chan Token)
	go func() { ch <- Current() }()
	there := <-ch

	assert.True(t, here.SameProcess(there))
	assert.False(t, here.SameOwner(there))
	assert.NotEqual(t, here.GID, there.GID)
}
