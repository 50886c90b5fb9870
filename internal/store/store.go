// Package store implements the File store capability (spec §6.1): the
// contract the core consumes to read and write a session's generated files,
// independent of whatever database backs a given deployment.
package store

import (
	"context"
	"fmt"

	"github.com/conductor-run/orchestrator/internal/models"
)

// SortField enumerates the allow-listed fields FileQuery may sort on.
// Anything outside this set is rejected rather than interpolated into a
// storage query.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortPath      SortField = "path"
	SortSize      SortField = "size"
	SortLanguage  SortField = "language"
)

// SortOrder enumerates the allow-listed query directions.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

func (f SortField) valid() bool {
	switch f {
	case SortCreatedAt, SortPath, SortSize, SortLanguage:
		return true
	}
	return false
}

func (o SortOrder) valid() bool {
	switch o {
	case OrderAsc, OrderDesc:
		return true
	}
	return false
}

// FileQuery describes a paginated, filtered listing of a session's files.
// Zero values are valid: PrefixFilter/LanguageFilter empty match everything,
// Limit 0 means unbounded, Sort defaults to SortPath/OrderAsc.
type FileQuery struct {
	PrefixFilter   string
	LanguageFilter string
	Sort           SortField
	Order          SortOrder
	Offset         int
	Limit          int
}

// storeErr is a typed, string-valued error so callers can compare against
// the exported sentinels with errors.Is without pulling in a struct type.
type storeErr string

func (e storeErr) Error() string { return string(e) }

// ErrInvalidFileQueryParams is returned when FileQuery names a sort field or
// order outside the allow-list.
const ErrInvalidFileQueryParams = storeErr("INVALID_FILE_QUERY_PARAMS")

// Validate rejects a FileQuery whose Sort/Order fall outside the allow-list.
// A zero-value Sort/Order is treated as the default and always valid.
func (q FileQuery) Validate() error {
	if q.Sort != "" && !q.Sort.valid() {
		return ErrInvalidFileQueryParams
	}
	if q.Order != "" && !q.Order.valid() {
		return ErrInvalidFileQueryParams
	}
	if q.Limit < 0 || q.Offset < 0 {
		return ErrInvalidFileQueryParams
	}
	return nil
}

// SaveResult reports the outcome of a batch SaveFiles call: paths that
// persisted successfully and, per-path, any error encountered.
type SaveResult struct {
	Saved  []string
	Errors map[string]error
}

// NewFile is one entry of a SaveFiles batch.
type NewFile struct {
	Path     string
	Content  string
	Language string
}

// FileStore is the capability-level contract the core consumes for
// reading and writing a session's generated files (spec §6.1). Consumers
// never embed query fragments built from user input; every filter passes
// through FileQuery so the allow-list is enforced once, centrally.
type FileStore interface {
	GetFile(ctx context.Context, sessionID, path string) (*models.StoredFile, error)
	GetAllFiles(ctx context.Context, sessionID string) ([]models.StoredFile, error)
	SaveFiles(ctx context.Context, sessionID string, files []NewFile) (SaveResult, error)
	DeleteFiles(ctx context.Context, sessionID string) (int, error)
	QueryFiles(ctx context.Context, sessionID string, query FileQuery) ([]models.StoredFile, error)
}

// applyQuery is the in-process filter/sort/paginate shared by every
// FileStore implementation in this package, so the allow-list and
// pagination semantics stay identical between the in-memory and SQLite
// backends.
func applyQuery(files []models.StoredFile, query FileQuery) ([]models.StoredFile, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	out := make([]models.StoredFile, 0, len(files))
	for _, f := range files {
		if query.PrefixFilter != "" && !hasPrefix(f.Path, query.PrefixFilter) {
			continue
		}
		if query.LanguageFilter != "" && f.Language != query.LanguageFilter {
			continue
		}
		out = append(out, f)
	}

	sortField := query.Sort
	if sortField == "" {
		sortField = SortPath
	}
	order := query.Order
	if order == "" {
		order = OrderAsc
	}
	sortFiles(out, sortField, order)

	if query.Offset > 0 {
		if query.Offset >= len(out) {
			return []models.StoredFile{}, nil
		}
		out = out[query.Offset:]
	}
	if query.Limit > 0 && query.Limit < len(out) {
		out = out[:query.Limit]
	}
	return out, nil
}

func hasPrefix(path, prefix string) bool {
	return len(path) >= len(prefix) && path[:len(prefix)] == prefix
}

func sortFiles(files []models.StoredFile, field SortField, order SortOrder) {
	less := func(i, j int) bool {
		var li bool
		switch field {
		case SortCreatedAt:
			li = files[i].CreatedAt.Before(files[j].CreatedAt)
		case SortSize:
			li = files[i].Size < files[j].Size
		case SortLanguage:
			li = files[i].Language < files[j].Language
		default:
			li = files[i].Path < files[j].Path
		}
		return li
	}
	insertionSort(files, func(i, j int) bool {
		if order == OrderDesc {
			return less(j, i)
		}
		return less(i, j)
	})
}

// insertionSort keeps this package's only sort free of sort.Slice's
// interface{} comparator allocation; file lists per session are small.
func insertionSort(files []models.StoredFile, less func(i, j int) bool) {
	for i := 1; i < len(files); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			files[j], files[j-1] = files[j-1], files[j]
		}
	}
}

func fileKey(sessionID, path string) string {
	return fmt.Sprintf("%s\x00%s", sessionID, path)
}
