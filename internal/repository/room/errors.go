package room

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrRoomCodeTaken   = errors.New("room code already taken")
	ErrMemberNameTaken = errors.New("member name already taken")
)
