// Package store persists the room directory as one serialized mapping
// from room code to room, the way browser local storage holds a single
// value per key. Writers rewrite the whole mapping; concurrent writers
// race and the last write wins.
package store

import (
	"github.com/npezzotti/pr-messenger/internal/types"
)

// StorageKey names the single entry holding the serialized room
// mapping.
const StorageKey = "prMessengerRooms"

type RoomStore interface {
	// Load returns the full room mapping. Malformed or missing data
	// reads as an empty mapping, never an error.
	Load() (map[string]types.Room, error)
	// Save merges one room into the mapping and writes the entire
	// mapping back as one unit.
	Save(room types.Room) error
	// Room looks up a single room by code.
	Room(code string) (types.Room, bool, error)
}

// ChangeNotifier is implemented by stores that can signal writes made
// by other processes, the analog of a storage-change event. Stores
// without it are covered by the sync poll alone.
type ChangeNotifier interface {
	Changes() <-chan struct{}
	Close() error
}
