package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the values of one device in a JSON document on disk.
// It is used in development where no Redis is available.
type FileStore struct {
	path   string
	mu     sync.Mutex
	values map[string]string
}

// OpenFileStore loads (or lazily creates) the store at path.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, fmt.Errorf("read local state: %w", err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	if err := json.Unmarshal(data, &fs.values); err != nil {
		return nil, fmt.Errorf("decode local state %s: %w", path, err)
	}
	return fs, nil
}

// Get implements Store.
func (fs *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	v, ok := fs.values[key]
	return v, ok, nil
}

// Set implements Store.
func (fs *FileStore) Set(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.values[key] = value
	return fs.save()
}

// Delete implements Store.
func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.values[key]; !ok {
		return nil
	}
	delete(fs.values, key)
	return fs.save()
}

// save writes the document atomically through a temporary file. Callers hold mu.
func (fs *FileStore) save() error {
	data, err := json.Marshal(fs.values)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return fmt.Errorf("create local state dir: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write local state: %w", err)
	}
	return os.Rename(tmp, fs.path)
}

// FileFactory opens one FileStore per device below a directory.
type FileFactory struct {
	dir    string
	mu     sync.Mutex
	stores map[string]*FileStore
}

// NewFileFactory creates a factory rooted at dir.
func NewFileFactory(dir string) *FileFactory {
	return &FileFactory{dir: dir, stores: make(map[string]*FileStore)}
}

// ForDevice implements Factory. Tabs of the same device share one FileStore.
func (f *FileFactory) ForDevice(deviceID string) (Store, error) {
	if !validDeviceID(deviceID) {
		return nil, ErrInvalidDeviceID
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if fs, ok := f.stores[deviceID]; ok {
		return fs, nil
	}

	fs, err := OpenFileStore(filepath.Join(f.dir, deviceID+".json"))
	if err != nil {
		return nil, err
	}
	f.stores[deviceID] = fs
	return fs, nil
}
