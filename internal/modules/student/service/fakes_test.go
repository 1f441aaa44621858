package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/internal/modules/student/dto"
	"uncommon.org/progresstrack/internal/modules/student/repository"
	"uncommon.org/progresstrack/pkg/apperror"
	"uncommon.org/progresstrack/pkg/storage"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func pngImage(name string) *dto.ImageFile {
	return &dto.ImageFile{Reader: bytes.NewReader(pngBytes), FileName: name, Size: int64(len(pngBytes))}
}

// memRepo is an in-memory StudentRepository.
type memRepo struct {
	mu        sync.Mutex
	seq       int
	students  map[string]*entity.Student
	failWrite error
	finds     int
}

func newMemRepo() *memRepo {
	return &memRepo{students: make(map[string]*entity.Student)}
}

func (r *memRepo) lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finds
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.students)
}

func (r *memRepo) Create(ctx context.Context, s *entity.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return r.failWrite
	}
	if s.Email != nil {
		for _, other := range r.students {
			if other.Email != nil && *other.Email == *s.Email {
				return fmt.Errorf("%w: email already registered", apperror.ErrConflict)
			}
		}
	}
	r.seq++
	s.ID = fmt.Sprintf("s%d", r.seq)
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	cp := *s
	r.students[s.ID] = &cp
	return nil
}

func (r *memRepo) FindByID(ctx context.Context, id string) (*entity.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	s, ok := r.students[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) Find(ctx context.Context, f repository.Filter) ([]*entity.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Student
	for _, s := range r.students {
		if f.SearchTerm != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.SearchTerm)) {
			continue
		}
		if f.Hub != "" && s.Hub != f.Hub {
			continue
		}
		if f.Status != "" && string(s.Status) != f.Status {
			continue
		}
		if f.CurrentActivity != "" && s.CurrentActivity != f.CurrentActivity {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) Update(ctx context.Context, id string, patch repository.Patch) (*entity.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrite != nil {
		return nil, r.failWrite
	}
	s, ok := r.students[id]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *s
	for k, v := range patch {
		switch k {
		case repository.FieldName:
			cp.Name = v.(string)
		case repository.FieldSchool:
			cp.School = v.(string)
		case repository.FieldHub:
			cp.Hub = v.(string)
		case repository.FieldCurrentActivity:
			cp.CurrentActivity = v.(string)
		case repository.FieldGender:
			cp.Gender = v.(string)
		case repository.FieldStatus:
			cp.Status = entity.StudentStatus(v.(string))
		case repository.FieldAge:
			if v == nil {
				cp.Age = nil
			} else {
				age := v.(int)
				cp.Age = &age
			}
		case repository.FieldEmail:
			if v == nil {
				cp.Email = nil
			} else {
				email := v.(string)
				for oid, other := range r.students {
					if oid != id && other.Email != nil && *other.Email == email {
						return nil, apperror.ErrConflict
					}
				}
				cp.Email = &email
			}
		case repository.FieldImageStorageID:
			cp.Image.StorageID = v.(string)
		case repository.FieldImageURL:
			cp.Image.URL = v.(string)
		default:
			return nil, fmt.Errorf("unknown column %s", k)
		}
	}
	cp.UpdatedAt = time.Now()
	r.students[id] = &cp
	out := cp
	return &out, nil
}

func (r *memRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.students[id]; !ok {
		return false, nil
	}
	delete(r.students, id)
	return true, nil
}

func (r *memRepo) Distinct(ctx context.Context, field string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.students {
		switch field {
		case repository.FieldHub:
			out = append(out, s.Hub)
		case repository.FieldSchool:
			out = append(out, s.School)
		case repository.FieldGender:
			out = append(out, s.Gender)
		}
	}
	return out, nil
}

// memStore is an in-memory AttachmentStore with switchable failures.
type memStore struct {
	mu         sync.Mutex
	seq        int
	blobs      map[string][]byte
	failPut    bool
	failDelete bool
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, r io.Reader, size int64, fileName string) (*storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.seq++
	id := fmt.Sprintf("%d-%s", m.seq, fileName)
	m.blobs[id] = data
	return &storage.Object{ID: id, URL: "/uploads/students/" + id}, nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errors.New("bucket unavailable")
	}
	delete(m.blobs, id)
	return nil
}

func (m *memStore) Ensure(ctx context.Context) error { return nil }

func (m *memStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[id]
	return ok
}

func (m *memStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type recordingQueue struct {
	ids []string
}

func (q *recordingQueue) Enqueue(ctx context.Context, id string) error {
	q.ids = append(q.ids, id)
	return nil
}

type recordingEvents struct {
	events []dto.StudentEvent
}

func (e *recordingEvents) PublishStudentEvent(ctx context.Context, event dto.StudentEvent) error {
	e.events = append(e.events, event)
	return nil
}

type recordingIndex struct {
	indexed []string
	deleted []string
}

func (i *recordingIndex) IndexStudent(s *entity.Student) error {
	i.indexed = append(i.indexed, s.ID)
	return nil
}

func (i *recordingIndex) DeleteStudent(id string) error {
	i.deleted = append(i.deleted, id)
	return nil
}

type memCache struct {
	values      map[string][]string
	invalidated int
}

func (c *memCache) Get(ctx context.Context, field string) ([]string, bool, error) {
	v, ok := c.values[field]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, field string, values []string) error {
	if c.values == nil {
		c.values = make(map[string][]string)
	}
	c.values[field] = values
	return nil
}

func (c *memCache) Invalidate(ctx context.Context) error {
	c.values = nil
	c.invalidated++
	return nil
}
