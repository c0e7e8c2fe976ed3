package domain

import "time"

type Member struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"room_id"`
	MemberName string    `json:"member_name"`
	IsHost     bool      `json:"is_host"`
	IsOnline   bool      `json:"is_online"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeen   time.Time `json:"last_seen"`
}

// FindMember returns the member with the given id.
func FindMember(members []Member, id string) (Member, bool) {
	for _, member := range members {
		if member.ID == id {
			return member, true
		}
	}

	return Member{}, false
}

// Host returns the host of the list, if any.
func Host(members []Member) (Member, bool) {
	for _, member := range members {
		if member.IsHost {
			return member, true
		}
	}

	return Member{}, false
}
