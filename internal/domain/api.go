package domain

// Request and response bodies of the registry REST API.

type CreateRoomRequest struct {
	HostName    string    `json:"host_name" validate:"required,max=32"`
	MediaID     string    `json:"media_id" validate:"required,max=32"`
	MediaType   MediaType `json:"media_type" validate:"required,oneof=movie tv"`
	ServerIndex *int      `json:"server_index" validate:"required,min=0"`
	Season      *int      `json:"season,omitempty" validate:"omitempty,min=1"`
	Episode     *int      `json:"episode,omitempty" validate:"omitempty,min=1"`
}

type CreateRoomResponse struct {
	RoomID       string `json:"room_id"`
	RoomCode     string `json:"room_code"`
	HostMemberID string `json:"host_member_id"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"room_code" validate:"required,len=6,alphanum"`
	MemberName string `json:"member_name" validate:"required,max=32"`
}

type JoinRoomResponse struct {
	RoomID   string   `json:"room_id"`
	MemberID string   `json:"member_id"`
	RoomData Room     `json:"room_data"`
	Members  []Member `json:"members"`
}

type LeaveRoomRequest struct {
	MemberID string `json:"member_id" validate:"required"`
}

type LeaveRoomResponse struct {
	Message    string `json:"message"`
	RoomClosed bool   `json:"room_closed"`
}

type RoomState struct {
	Room    Room     `json:"room"`
	Members []Member `json:"members"`
}

type SyncEventRequest struct {
	MemberID  string    `json:"member_id" validate:"required"`
	EventType EventType `json:"event_type" validate:"required"`
	EventData EventData `json:"event_data"`
}

type SyncEventResponse struct {
	EventID string `json:"event_id"`
}
