package store

import (
	"context"
	"sync"
	"time"

	"github.com/conductor-run/orchestrator/internal/models"
)

// MemoryStore is an in-memory, mutex-guarded FileStore. It is the default
// backend for tests and for single-process deployments that do not need
// durability across restarts.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]models.StoredFile // fileKey(sessionID, path) -> file
	now   func() time.Time
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]models.StoredFile),
		now:   time.Now,
	}
}

func (s *MemoryStore) GetFile(ctx context.Context, sessionID, path string) (*models.StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[fileKey(sessionID, path)]
	if !ok {
		return nil, nil
	}
	out := f
	return &out, nil
}

func (s *MemoryStore) GetAllFiles(ctx context.Context, sessionID string) ([]models.StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionFilesLocked(sessionID), nil
}

func (s *MemoryStore) sessionFilesLocked(sessionID string) []models.StoredFile {
	out := make([]models.StoredFile, 0)
	for _, f := range s.files {
		if f.SessionID == sessionID {
			out = append(out, f)
		}
	}
	return out
}

func (s *MemoryStore) SaveFiles(ctx context.Context, sessionID string, newFiles []NewFile) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := SaveResult{Errors: make(map[string]error)}
	for _, nf := range newFiles {
		if nf.Path == "" {
			result.Errors[nf.Path] = storeErr("EMPTY_FILE_PATH")
			continue
		}
		key := fileKey(sessionID, nf.Path)
		existing, ok := s.files[key]
		createdAt := s.now()
		if ok {
			createdAt = existing.CreatedAt
		}
		s.files[key] = models.StoredFile{
			SessionID: sessionID,
			Path:      nf.Path,
			Content:   nf.Content,
			Language:  nf.Language,
			Size:      len(nf.Content),
			CreatedAt: createdAt,
		}
		result.Saved = append(result.Saved, nf.Path)
	}
	return result, nil
}

func (s *MemoryStore) DeleteFiles(ctx context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key, f := range s.files {
		if f.SessionID == sessionID {
			delete(s.files, key)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) QueryFiles(ctx context.Context, sessionID string, query FileQuery) ([]models.StoredFile, error) {
	s.mu.RLock()
	files := s.sessionFilesLocked(sessionID)
	s.mu.RUnlock()
	return applyQuery(files, query)
}
