package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidResourceType  = errors.New("invalid resource data type")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrNotCoreThread        = errors.New("operation must run on the core thread")
	ErrThreadStopped        = errors.New("core thread stopped")
	ErrCoreNotInitialized   = errors.New("core object not initialized")
	ErrCoreDestroyed        = errors.New("core object destroyed")
	ErrBufferLocked         = errors.New("buffer already locked")
	ErrBufferNotLocked      = errors.New("buffer not locked")
	ErrBufferDestroyed      = errors.New("buffer destroyed")
	ErrProgramStageMismatch = errors.New("gpu program bound to the wrong stage")
	ErrCommandPanicked      = errors.New("core thread command panicked")
	ErrWaitOnCoreThread     = errors.New("cannot wait on an async op from the core thread")
	ErrInvalidTriangleList  = errors.New("index count is not a triangle list")
	ErrInvalidMeshFile      = errors.New("invalid mesh file")
	ErrUnknown              = errors.New("unknown")
)

// ThreadViolation is the panic value of a failed core thread assertion.
type ThreadViolation struct {
	Op string
}

func (e *ThreadViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, ErrNotCoreThread.Error())
}

func (e *ThreadViolation) Unwrap() error {
	return ErrNotCoreThread
}
