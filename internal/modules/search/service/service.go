package service

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"

	"uncommon.org/progresstrack/internal/entity"
)

const (
	StudentIndex  = "students"
	signerKeyName = "StudentSearchSigner"
	tokenTTL      = 24 * time.Hour
)

type MeiliSearchService interface {
	IndexStudent(student *entity.Student) error
	DeleteStudent(id string) error
	GenerateSearchToken() (string, error)
}

type meiliSearchService struct {
	client        meilisearch.ServiceManager
	signingKeyUID string
	signingKey    string
	sanitizer     *bluemonday.Policy
	logger        *slog.Logger
}

// NewMeiliSearchService configures the students index and the key used to
// sign tenant tokens. Setup failures are logged; indexing still works.
func NewMeiliSearchService(client meilisearch.ServiceManager, logger *slog.Logger) MeiliSearchService {
	s := newMeiliSearchService(client, logger)
	s.initIndex()
	s.initSigningKey()
	return s
}

func newMeiliSearchService(client meilisearch.ServiceManager, logger *slog.Logger) *meiliSearchService {
	return &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With("component", "search"),
	}
}

func (s *meiliSearchService) initIndex() {
	filterable := []any{"hub", "status", "school", "current_activity"}
	if _, err := s.client.Index(StudentIndex).UpdateFilterableAttributes(&filterable); err != nil {
		s.logger.Warn("failed to update students filterable attributes", "error", err)
	}

	sortable := []string{"name", "joined_at"}
	if _, err := s.client.Index(StudentIndex).UpdateSortableAttributes(&sortable); err != nil {
		s.logger.Warn("failed to update students sortable attributes", "error", err)
	}

	s.logger.Info("meilisearch index initialized", "index", StudentIndex)
}

func (s *meiliSearchService) initSigningKey() {
	resp, err := s.client.GetKeys(&meilisearch.KeysQuery{Limit: 20})
	if err != nil {
		s.logger.Warn("failed to get meilisearch keys", "error", err)
		return
	}

	for _, key := range resp.Results {
		if key.Name == signerKeyName {
			s.signingKeyUID = key.UID
			s.signingKey = key.Key
			return
		}
	}

	key, err := s.client.CreateKey(&meilisearch.Key{
		Description: "Key to sign student search tenant tokens",
		Name:        signerKeyName,
		Actions:     []string{"search"},
		Indexes:     []string{StudentIndex},
		ExpiresAt:   time.Now().AddDate(100, 0, 0),
	})
	if err != nil {
		s.logger.Warn("failed to create signing key", "error", err)
		return
	}

	s.signingKeyUID = key.UID
	s.signingKey = key.Key
	s.logger.Info("created meilisearch signing key")
}

type studentDoc struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	School          string `json:"school"`
	Hub             string `json:"hub"`
	CurrentActivity string `json:"current_activity"`
	Gender          string `json:"gender,omitempty"`
	Status          string `json:"status"`
	ImageURL        string `json:"image_url,omitempty"`
	JoinedAt        int64  `json:"joined_at"`
}

func (s *meiliSearchService) cleanText(value string) string {
	cleaned := html.UnescapeString(s.sanitizer.Sanitize(value))
	return strings.Join(strings.Fields(cleaned), " ")
}

func (s *meiliSearchService) toDoc(student *entity.Student) studentDoc {
	return studentDoc{
		ID:              student.ID,
		Name:            s.cleanText(student.Name),
		School:          s.cleanText(student.School),
		Hub:             student.Hub,
		CurrentActivity: student.CurrentActivity,
		Gender:          student.Gender,
		Status:          string(student.Status),
		ImageURL:        student.Image.URL,
		JoinedAt:        student.JoinedAt.Unix(),
	}
}

func (s *meiliSearchService) IndexStudent(student *entity.Student) error {
	task, err := s.client.Index(StudentIndex).AddDocuments([]studentDoc{s.toDoc(student)}, strPtr("id"))
	if err != nil {
		return fmt.Errorf("index student %s: %w", student.ID, err)
	}
	s.logger.Debug("student indexed", "student_id", student.ID, "task_uid", task.TaskUID)
	return nil
}

func (s *meiliSearchService) DeleteStudent(id string) error {
	if _, err := s.client.Index(StudentIndex).DeleteDocument(id); err != nil {
		return fmt.Errorf("remove student %s from index: %w", id, err)
	}
	return nil
}

// GenerateSearchToken returns a tenant token that can only search the
// students index.
func (s *meiliSearchService) GenerateSearchToken() (string, error) {
	if s.signingKeyUID == "" || s.signingKey == "" {
		return "", fmt.Errorf("signing key not initialized")
	}

	searchRules := map[string]any{
		StudentIndex: map[string]any{},
	}

	return s.client.GenerateTenantToken(s.signingKeyUID, searchRules, &meilisearch.TenantTokenOptions{
		APIKey:    s.signingKey,
		ExpiresAt: time.Now().Add(tokenTTL),
	})
}

func strPtr(s string) *string {
	return &s
}
