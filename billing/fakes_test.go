package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusInvoiceCreated:
		return 1
	case StatusNotificationSent:
		return 2
	default:
		return -1
	}
}

// fakeRepository mirrors the storage contract in memory, including the
// debt-identifier uniqueness constraint and the monotonic status guard.
type fakeRepository struct {
	files       map[uuid.UUID]SourceFile
	records     []Record
	insertErr   error
	listErr     error
	updateErr   error
	updateCalls []updateCall
}

type updateCall struct {
	ids    []uuid.UUID
	status Status
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{files: make(map[uuid.UUID]SourceFile)}
}

func (f *fakeRepository) CreateFile(_ context.Context, path string) (SourceFile, error) {
	for _, file := range f.files {
		if file.Path == path {
			return SourceFile{}, ErrDuplicatePath
		}
	}
	file := SourceFile{ID: uuid.New(), Path: path, CreatedAt: time.Now().UTC()}
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeRepository) GetFile(_ context.Context, id uuid.UUID) (SourceFile, error) {
	file, ok := f.files[id]
	if !ok {
		return SourceFile{}, ErrFileNotFound
	}
	return file, nil
}

func (f *fakeRepository) InsertRecords(_ context.Context, recs []Record) (int, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	inserted := 0
	for _, rec := range recs {
		if f.hasDebtID(rec.DebtID) {
			continue
		}
		rec.ID = uuid.New()
		if rec.Status == "" {
			rec.Status = StatusPending
		}
		rec.CreatedAt = time.Now().UTC()
		rec.UpdatedAt = rec.CreatedAt
		f.records = append(f.records, rec)
		inserted++
	}
	return inserted, nil
}

func (f *fakeRepository) ListBySelector(_ context.Context, sel Selector, limit int) ([]Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]Record, 0, len(f.records))
	for _, rec := range f.records {
		if sel.Status != "" && rec.Status != sel.Status {
			continue
		}
		if sel.FileID != uuid.Nil && rec.FileID != sel.FileID {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepository) UpdateStatus(_ context.Context, ids []uuid.UUID, status Status) (int64, error) {
	if f.updateErr != nil {
		return 0, f.updateErr
	}
	f.updateCalls = append(f.updateCalls, updateCall{ids: ids, status: status})

	var updated int64
	for _, id := range ids {
		for i := range f.records {
			if f.records[i].ID != id {
				continue
			}
			if statusRank(status) > statusRank(f.records[i].Status) {
				f.records[i].Status = status
				f.records[i].UpdatedAt = time.Now().UTC()
				updated++
			}
		}
	}
	return updated, nil
}

func (f *fakeRepository) hasDebtID(debtID uuid.UUID) bool {
	for _, rec := range f.records {
		if rec.DebtID == debtID {
			return true
		}
	}
	return false
}

func (f *fakeRepository) recordByDebtID(debtID uuid.UUID) (Record, bool) {
	for _, rec := range f.records {
		if rec.DebtID == debtID {
			return rec, true
		}
	}
	return Record{}, false
}

// fakeCollaborator records executions and returns a scripted result.
type fakeCollaborator struct {
	healthy  bool
	result   bool
	executed []uuid.UUID
}

func (f *fakeCollaborator) HealthCheck(context.Context) bool {
	return f.healthy
}

func (f *fakeCollaborator) Execute(_ context.Context, rec Record) bool {
	f.executed = append(f.executed, rec.DebtID)
	return f.result
}
