package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/npezzotti/pr-messenger/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type storageEntry struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

func (storageEntry) TableName() string {
	return "storage"
}

// SQLiteStore keeps the same single-blob contract as FileStore, with
// the serialized mapping in one row of a key/value table. It has no
// change notifications; other sessions pick up writes on their next
// sync poll.
type SQLiteStore struct {
	db  *gorm.DB
	log *log.Logger
	mu  sync.Mutex
}

func NewSQLiteStore(path string, logger *log.Logger) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&storageEntry{}); err != nil {
		return nil, fmt.Errorf("migrate storage table: %w", err)
	}

	return &SQLiteStore{db: db, log: logger}, nil
}

func (s *SQLiteStore) Load() (map[string]types.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *SQLiteStore) load() (map[string]types.Room, error) {
	var entry storageEntry
	err := s.db.First(&entry, "key = ?", StorageKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return map[string]types.Room{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	rooms := map[string]types.Room{}
	if err := json.Unmarshal([]byte(entry.Value), &rooms); err != nil {
		s.log.Printf("storage key %q is malformed, treating as empty: %v", StorageKey, err)
		return map[string]types.Room{}, nil
	}
	return rooms, nil
}

func (s *SQLiteStore) Save(room types.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms, err := s.load()
	if err != nil {
		return err
	}
	rooms[room.Code] = room

	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	entry := storageEntry{Key: StorageKey, Value: string(data)}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&entry).Error; err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Room(code string) (types.Room, bool, error) {
	rooms, err := s.Load()
	if err != nil {
		return types.Room{}, false, err
	}
	room, ok := rooms[code]
	return room, ok, nil
}

func (s *SQLiteStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
