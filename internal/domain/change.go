package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// Table names a logical stream of the realtime change feed.
type Table string

const (
	TableRooms   Table = "rooms"
	TableMembers Table = "members"
	TableEvents  Table = "events"
)

var Tables = []Table{TableRooms, TableMembers, TableEvents}

func (t Table) Valid() bool {
	return t == TableRooms || t == TableMembers || t == TableEvents
}

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// Change is a row-level notification published on the realtime feed.
// New is set for inserts and updates, Old for deletes.
type Change struct {
	Table           Table           `json:"table"`
	Type            ChangeType      `json:"type"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

func NewChange(table Table, changeType ChangeType, row any) (Change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Change{}, err
	}

	change := Change{
		Table:           table,
		Type:            changeType,
		CommitTimestamp: time.Now().UTC(),
	}
	if changeType == ChangeDelete {
		change.Old = data
	} else {
		change.New = data
	}

	return change, nil
}
