package blobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps files in process memory and serves view URLs under a base URL.
// Used for local development and in tests; FailOn lets tests simulate outages.
type MemoryStore struct {
	files   map[string]File
	failOn  map[string]error
	baseURL string
	mu      sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store whose view URLs start with baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		files:   make(map[string]File),
		failOn:  make(map[string]error),
		baseURL: baseURL,
	}
}

// FailOn makes the named operation ("upload", "view", "delete") return err.
// A nil err clears the failure.
func (s *MemoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

// Has reports whether a file is stored.
func (s *MemoryStore) Has(fileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[fileID]
	return ok
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// UploadFile implements Store.
func (s *MemoryStore) UploadFile(_ context.Context, file File) (*FileRef, error) {
	if err := Prepare(&file); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failOn["upload"]; err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	id := uuid.NewString()
	data := make([]byte, len(file.Data))
	copy(data, file.Data)
	file.Data = data
	s.files[id] = file

	return &FileRef{ID: id, Name: file.Name, MimeType: file.ContentType, Size: len(data)}, nil
}

// GetFileView implements Store.
func (s *MemoryStore) GetFileView(_ context.Context, fileID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failOn["view"]; err != nil {
		return "", fmt.Errorf("get file view: %w", err)
	}
	if _, ok := s.files[fileID]; !ok {
		return "", fmt.Errorf("get file view %s: %w", fileID, ErrFileNotFound)
	}
	return ViewURL(s.baseURL, fileID), nil
}

// Open returns a stored file's content.
func (s *MemoryStore) Open(_ context.Context, fileID string) (File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, ok := s.files[fileID]
	if !ok {
		return File{}, fmt.Errorf("open file %s: %w", fileID, ErrFileNotFound)
	}
	return file, nil
}

// DeleteFile implements Store.
func (s *MemoryStore) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failOn["delete"]; err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if _, ok := s.files[fileID]; !ok {
		return fmt.Errorf("delete file %s: %w", fileID, ErrFileNotFound)
	}
	delete(s.files, fileID)
	return nil
}
