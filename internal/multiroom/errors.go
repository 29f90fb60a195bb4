package multiroom

import "errors"

var (
	// ErrSyncGroupNotFound is returned when no group exists under the name.
	ErrSyncGroupNotFound = errors.New("multiroom: sync group not found")

	// ErrInsufficientGroupSize is returned when a group is created with
	// fewer than two members.
	ErrInsufficientGroupSize = errors.New("multiroom: group needs at least 2 devices")

	// ErrInvalidGroup is returned for malformed group definitions.
	ErrInvalidGroup = errors.New("multiroom: invalid group")

	// ErrMemberNotConnected is returned at creation when a listed device
	// is not live. Membership is not re-validated afterwards.
	ErrMemberNotConnected = errors.New("multiroom: member not connected")

	// ErrInvalidCommand is returned when a dispatch command fails
	// validation.
	ErrInvalidCommand = errors.New("multiroom: invalid command")
)
