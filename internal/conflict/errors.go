package conflict

import "errors"

var (
	// ErrIdentityMismatch indicates that local and remote snapshots belong to different records
	ErrIdentityMismatch = errors.New("local and remote records have different ids")

	// ErrNilRecord indicates that one of the snapshots is missing
	ErrNilRecord = errors.New("record snapshot is nil")
)
