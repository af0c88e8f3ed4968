package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/npezzotti/pr-messenger/internal/types"
)

// FileStore keeps the room mapping as one JSON file. Writes go to a
// temp file and rename over the target so readers and watchers never
// observe a partial write.
type FileStore struct {
	path    string
	log     *log.Logger
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

func NewFileStore(path string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	return &FileStore{
		path: path,
		log:  logger,
	}, nil
}

func (fs *FileStore) Load() (map[string]types.Room, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.load()
}

func (fs *FileStore) load() (map[string]types.Room, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.Room{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}

	rooms := map[string]types.Room{}
	if err := json.Unmarshal(data, &rooms); err != nil {
		// Fail open: malformed data reads as empty rather than
		// breaking the session.
		fs.log.Printf("store %q is malformed, treating as empty: %v", fs.path, err)
		return map[string]types.Room{}, nil
	}
	return rooms, nil
}

func (fs *FileStore) Save(room types.Room) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	rooms, err := fs.load()
	if err != nil {
		return err
	}
	rooms[room.Code] = room

	data, err := json.Marshal(rooms)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (fs *FileStore) Room(code string) (types.Room, bool, error) {
	rooms, err := fs.Load()
	if err != nil {
		return types.Room{}, false, err
	}
	room, ok := rooms[code]
	return room, ok, nil
}

// Watch starts delivering change notifications for writes to the store
// file. The directory is watched because the save path renames over
// the file.
func (fs *FileStore) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(fs.path)); err != nil {
		w.Close()
		return fmt.Errorf("watch store dir: %w", err)
	}

	fs.watcher = w
	fs.changes = make(chan struct{}, 1)
	fs.done = make(chan struct{})
	go fs.watch()
	return nil
}

func (fs *FileStore) watch() {
	for {
		select {
		case ev, ok := <-fs.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != fs.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			select {
			case fs.changes <- struct{}{}:
			default:
				// a notification is already pending
			}
		case err, ok := <-fs.watcher.Errors:
			if !ok {
				return
			}
			fs.log.Println("store watch:", err)
		case <-fs.done:
			return
		}
	}
}

func (fs *FileStore) Changes() <-chan struct{} {
	return fs.changes
}

func (fs *FileStore) Close() error {
	if fs.watcher == nil {
		return nil
	}
	close(fs.done)
	return fs.watcher.Close()
}
