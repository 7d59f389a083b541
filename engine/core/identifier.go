package core

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	owners      []interface{}
	ownersMutex sync.Mutex
)

// IdentifierAquireNewID hands out the lowest free id for owner.
func IdentifierAquireNewID(owner interface{}) uint32 {
	ownersMutex.Lock()
	defer ownersMutex.Unlock()

	if len(owners) == 0 {
		owners = make([]interface{}, 100)
	}
	length := uint32(len(owners))
	for i := uint32(0); i < length; i++ {
		// Existing free spot. Take it.
		if owners[i] == nil {
			owners[i] = owner
			return i
		}
	}

	// No free slots, push a new one. The id is length - 1.
	owners = append(owners, owner)
	return uint32(len(owners)) - 1
}

func IdentifierReleaseID(id uint32) error {
	ownersMutex.Lock()
	defer ownersMutex.Unlock()

	if len(owners) == 0 {
		return fmt.Errorf("func IdentifierReleaseID: no id was ever acquired: %w", ErrInvalidParameter)
	}

	length := uint32(len(owners))
	if id >= length {
		return fmt.Errorf("func IdentifierReleaseID: id %d out of range [0, %d): %w", id, length, ErrIndexOutOfRange)
	}

	// Just zero out the entry, making it available for use.
	owners[id] = nil
	return nil
}

// IdentifierOwner returns the owner registered under id, or nil.
func IdentifierOwner(id uint32) interface{} {
	ownersMutex.Lock()
	defer ownersMutex.Unlock()
	if id >= uint32(len(owners)) {
		return nil
	}
	return owners[id]
}

// NewDebugName returns a unique, human readable name for a GPU object.
func NewDebugName(kind string) string {
	return fmt.Sprintf("%s-%s", kind, uuid.NewString())
}
