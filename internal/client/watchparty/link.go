package watchparty

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sharetube/watchparty/internal/domain"
)

const roomQueryParam = "room"

var roomCodeRe = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// ShareLink returns base with the current room code in its query.
func (m *Manager) ShareLink(base string) (string, error) {
	room, ok := m.session.Room()
	if !ok {
		return "", domain.ErrNotConnected
	}

	return BuildShareLink(base, room.RoomCode)
}

func BuildShareLink(base, roomCode string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: invalid link: %w", domain.ErrValidation, err)
	}

	query := u.Query()
	query.Set(roomQueryParam, roomCode)
	u.RawQuery = query.Encode()

	return u.String(), nil
}

// RoomCodeFromLink extracts a room code from a share link.
func RoomCodeFromLink(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	code := strings.ToUpper(strings.TrimSpace(u.Query().Get(roomQueryParam)))
	if !roomCodeRe.MatchString(code) {
		return "", false
	}

	return code, true
}
