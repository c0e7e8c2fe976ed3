package room

type SetRoomParams struct {
	RoomID             string
	RoomCode           string
	HostName           string
	MediaID            string
	MediaType          string
	CurrentServerIndex int
	CurrentSeason      int
	CurrentEpisode     int
	CreatedAt          int64
}

// UpdateRoomParams carries a partial room update; nil fields are left untouched.
type UpdateRoomParams struct {
	RoomID             string
	CurrentServerIndex *int
	CurrentSeason      *int
	CurrentEpisode     *int
	CurrentTime        *float64
	IsPlaying          *bool
	LastActivity       int64
}

type SetMemberParams struct {
	MemberID   string
	RoomID     string
	MemberName string
	IsHost     bool
	JoinedAt   int64
}

type RemoveMemberParams struct {
	MemberID string
	RoomID   string
}

type AddEventParams struct {
	EventID   string
	RoomID    string
	MemberID  string
	EventType string
	EventData []byte
	CreatedAt int64
}
