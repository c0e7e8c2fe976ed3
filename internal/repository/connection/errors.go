package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
)

// Info describes what a realtime connection is subscribed to.
type Info struct {
	RoomID   string
	MemberID string
	Table    string
}
