package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"uncommon.org/progresstrack/internal/entity"
)

// FlexString accepts a JSON string or a JSON number, so numeric fields such
// as age can be sent either way. It also binds from form values.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// UnmarshalParam implements gin's binding.BindUnmarshaler.
func (f *FlexString) UnmarshalParam(param string) error {
	*f = FlexString(param)
	return nil
}

// StudentInput is the request body for create and update. Absent fields are
// nil. username, help_hub and current_game are accepted as legacy names for
// name, hub and currentActivity; the canonical name wins when both are sent.
type StudentInput struct {
	Name            *string     `json:"name" form:"name"`
	Username        *string     `json:"username" form:"username"`
	School          *string     `json:"school" form:"school"`
	Hub             *string     `json:"hub" form:"hub"`
	HelpHub         *string     `json:"help_hub" form:"help_hub"`
	CurrentActivity *string     `json:"currentActivity" form:"currentActivity"`
	CurrentGame     *string     `json:"current_game" form:"current_game"`
	Age             *FlexString `json:"age" form:"age"`
	Gender          *string     `json:"gender" form:"gender"`
	Status          *string     `json:"status" form:"status"`
	Email           *string     `json:"email" form:"email"`
}

// Fields returns the input keyed by canonical field name with aliases
// resolved. Only present fields appear in the map.
func (in StudentInput) Fields() map[string]string {
	out := make(map[string]string)
	put := func(key string, canonical, alias *string) {
		switch {
		case canonical != nil:
			out[key] = *canonical
		case alias != nil:
			out[key] = *alias
		}
	}

	put("name", in.Name, in.Username)
	put("school", in.School, nil)
	put("hub", in.Hub, in.HelpHub)
	put("currentActivity", in.CurrentActivity, in.CurrentGame)
	put("gender", in.Gender, nil)
	put("status", in.Status, nil)
	put("email", in.Email, nil)
	if in.Age != nil {
		out["age"] = string(*in.Age)
	}
	return out
}

// ImageFile is an uploaded avatar. Reader must be rewindable so the content
// type can be sniffed before the upload.
type ImageFile struct {
	Reader   io.ReadSeeker
	FileName string
	Size     int64
}

// FilterRequest holds filter criteria from a JSON body or query string.
// "All" or an empty value means no constraint.
type FilterRequest struct {
	SearchTerm      string `json:"searchTerm" form:"searchTerm"`
	Hub             string `json:"hub" form:"hub"`
	Status          string `json:"status" form:"status"`
	CurrentActivity string `json:"currentActivity" form:"currentActivity"`
}

type ImageRefResponse struct {
	StorageID string `json:"storageId"`
	URL       string `json:"url"`
}

type StudentResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	School          string            `json:"school"`
	Hub             string            `json:"hub"`
	CurrentActivity string            `json:"currentActivity"`
	Age             *int              `json:"age"`
	Gender          string            `json:"gender"`
	Status          string            `json:"status"`
	Email           *string           `json:"email"`
	ImageRef        *ImageRefResponse `json:"imageRef"`
	JoinedAt        time.Time         `json:"joinedAt"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func NewStudentResponse(s *entity.Student) StudentResponse {
	res := StudentResponse{
		ID:              s.ID,
		Name:            s.Name,
		School:          s.School,
		Hub:             s.Hub,
		CurrentActivity: s.CurrentActivity,
		Age:             s.Age,
		Gender:          s.Gender,
		Status:          string(s.Status),
		Email:           s.Email,
		JoinedAt:        s.JoinedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if !s.Image.IsZero() {
		res.ImageRef = &ImageRefResponse{StorageID: s.Image.StorageID, URL: s.Image.URL}
	}
	return res
}

func NewStudentListResponse(students []*entity.Student) []StudentResponse {
	out := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, NewStudentResponse(s))
	}
	return out
}

// StudentEvent is published after every successful write.
type StudentEvent struct {
	Type      string           `json:"type"`
	StudentID string           `json:"studentId"`
	Student   *StudentResponse `json:"student,omitempty"`
	At        time.Time        `json:"at"`
}

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)
