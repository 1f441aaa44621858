package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"uncommon.org/progresstrack/internal/entity"
	"uncommon.org/progresstrack/internal/modules/student/dto"
	"uncommon.org/progresstrack/internal/modules/student/repository"
	"uncommon.org/progresstrack/pkg/apperror"
	"uncommon.org/progresstrack/pkg/storage"
)

const allValues = "All"

// CleanupQueue takes attachment ids whose deletion failed.
type CleanupQueue interface {
	Enqueue(ctx context.Context, storageID string) error
}

// SearchIndexer mirrors students into the search index.
type SearchIndexer interface {
	IndexStudent(student *entity.Student) error
	DeleteStudent(id string) error
}

// EventPublisher announces student changes.
type EventPublisher interface {
	PublishStudentEvent(ctx context.Context, event dto.StudentEvent) error
}

type StudentService interface {
	Create(ctx context.Context, input dto.StudentInput, image *dto.ImageFile) (*entity.Student, error)
	GetByID(ctx context.Context, id string) (*entity.Student, error)
	GetAll(ctx context.Context) ([]*entity.Student, error)
	Filter(ctx context.Context, req dto.FilterRequest) ([]*entity.Student, error)
	GetDistinct(ctx context.Context, field string) ([]string, error)
	Update(ctx context.Context, id string, input dto.StudentInput, image *dto.ImageFile) (*entity.Student, error)
	Delete(ctx context.Context, id string) error
}

// Options configures a StudentService. Cache, Cleanup, Search and Events are
// optional and may be nil.
type Options struct {
	Profile        string
	MaxUploadBytes int64

	Cache   repository.DistinctCache
	Cleanup CleanupQueue
	Search  SearchIndexer
	Events  EventPublisher
	Logger  *slog.Logger
}

type studentService struct {
	repo        repository.StudentRepository
	attachments storage.AttachmentStore
	normalizer  *normalizer
	maxUpload   int64
	cache       repository.DistinctCache
	cleanup     CleanupQueue
	search      SearchIndexer
	events      EventPublisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewStudentService(repo repository.StudentRepository, attachments storage.AttachmentStore, opts Options) (StudentService, error) {
	n, err := newNormalizer(opts.Profile)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &studentService{
		repo:        repo,
		attachments: attachments,
		normalizer:  n,
		maxUpload:   opts.MaxUploadBytes,
		cache:       opts.Cache,
		cleanup:     opts.Cleanup,
		search:      opts.Search,
		events:      opts.Events,
		logger:      logger.With("component", "student"),
		now:         time.Now,
	}, nil
}

func (s *studentService) Create(ctx context.Context, input dto.StudentInput, image *dto.ImageFile) (*entity.Student, error) {
	values, err := s.normalizer.normalize(input.Fields(), true)
	if err != nil {
		return nil, err
	}
	if image != nil {
		if err := checkImage(image, s.maxUpload); err != nil {
			return nil, err
		}
	}

	student := values.newStudent()
	student.JoinedAt = s.now().UTC()

	if image != nil {
		obj, err := s.attachments.Put(ctx, image.Reader, image.Size, image.FileName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrAttachment, err)
		}
		student.Image = entity.ImageRef{StorageID: obj.ID, URL: obj.URL}
	}

	if err := s.repo.Create(ctx, student); err != nil {
		if image != nil {
			s.discardAttachment(ctx, student.Image.StorageID, "rollback after failed insert")
		}
		return nil, err
	}

	s.afterWrite(ctx, dto.EventCreated, student)
	return student, nil
}

func (s *studentService) GetByID(ctx context.Context, id string) (*entity.Student, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *studentService) GetAll(ctx context.Context) ([]*entity.Student, error) {
	return s.repo.Find(ctx, repository.Filter{})
}

func (s *studentService) Filter(ctx context.Context, req dto.FilterRequest) ([]*entity.Student, error) {
	filter := repository.Filter{
		SearchTerm:      strings.TrimSpace(req.SearchTerm),
		Hub:             criterion(req.Hub),
		Status:          criterion(req.Status),
		CurrentActivity: criterion(req.CurrentActivity),
	}
	return s.repo.Find(ctx, filter)
}

func (s *studentService) GetDistinct(ctx context.Context, field string) ([]string, error) {
	if !repository.DistinctFields[field] {
		return nil, apperror.NewValidationError("field", "must be one of hub, school, gender")
	}

	if s.cache != nil {
		values, ok, err := s.cache.Get(ctx, field)
		if err != nil {
			s.logger.Warn("distinct cache read failed", "field", field, "error", err)
		} else if ok {
			return values, nil
		}
	}

	raw, err := s.repo.Distinct(ctx, field)
	if err != nil {
		return nil, err
	}

	values := dedupe(raw)
	if s.cache != nil {
		if err := s.cache.Set(ctx, field, values); err != nil {
			s.logger.Warn("distinct cache write failed", "field", field, "error", err)
		}
	}
	return values, nil
}

func (s *studentService) Update(ctx context.Context, id string, input dto.StudentInput, image *dto.ImageFile) (*entity.Student, error) {
	values, err := s.normalizer.normalize(input.Fields(), false)
	if err != nil {
		return nil, err
	}
	if image != nil {
		if err := checkImage(image, s.maxUpload); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := values.patch()

	var uploaded *storage.Object
	if image != nil {
		uploaded, err = s.attachments.Put(ctx, image.Reader, image.Size, image.FileName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrAttachment, err)
		}
		patch[repository.FieldImageStorageID] = uploaded.ID
		patch[repository.FieldImageURL] = uploaded.URL
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if uploaded != nil {
			s.discardAttachment(ctx, uploaded.ID, "rollback after failed update")
		}
		return nil, err
	}

	if uploaded != nil && existing.Image.StorageID != "" && existing.Image.StorageID != uploaded.ID {
		s.discardAttachment(ctx, existing.Image.StorageID, "replaced by new image")
	}

	s.afterWrite(ctx, dto.EventUpdated, updated)
	return updated, nil
}

func (s *studentService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.ErrNotFound
	}

	if existing.Image.StorageID != "" {
		s.discardAttachment(ctx, existing.Image.StorageID, "student deleted")
	}

	s.afterWrite(ctx, dto.EventDeleted, existing)
	return nil
}

// discardAttachment deletes a blob without failing the caller. Failures are
// logged and handed to the cleanup queue when one is configured.
func (s *studentService) discardAttachment(ctx context.Context, storageID, reason string) {
	err := s.attachments.Delete(ctx, storageID)
	if err == nil {
		return
	}

	s.logger.Error("attachment delete failed",
		"storage_id", storageID,
		"reason", reason,
		"error", err,
	)

	if s.cleanup == nil {
		return
	}
	if qerr := s.cleanup.Enqueue(ctx, storageID); qerr != nil {
		s.logger.Error("failed to queue attachment for cleanup", "storage_id", storageID, "error", qerr)
	}
}

// afterWrite runs the best-effort side effects of a successful write.
func (s *studentService) afterWrite(ctx context.Context, eventType string, student *entity.Student) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("distinct cache invalidation failed", "error", err)
		}
	}

	if s.search != nil {
		var err error
		if eventType == dto.EventDeleted {
			err = s.search.DeleteStudent(student.ID)
		} else {
			err = s.search.IndexStudent(student)
		}
		if err != nil {
			s.logger.Warn("search index update failed", "student_id", student.ID, "error", err)
		}
	}

	if s.events != nil {
		event := dto.StudentEvent{Type: eventType, StudentID: student.ID, At: s.now().UTC()}
		if eventType != dto.EventDeleted {
			res := dto.NewStudentResponse(student)
			event.Student = &res
		}
		if err := s.events.PublishStudentEvent(ctx, event); err != nil {
			s.logger.Warn("student event publish failed", "student_id", student.ID, "error", err)
		}
	}
}

func criterion(value string) string {
	value = strings.TrimSpace(value)
	if value == allValues {
		return ""
	}
	return value
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
