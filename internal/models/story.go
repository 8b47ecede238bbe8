package models

import (
	"github.com/google/uuid"
)

// StoryStatus определяет жизненный цикл истории.
type StoryStatus string

const (
	StoryStatusDraft     StoryStatus = "draft"     // Черновик, виден только автору
	StoryStatusPublished StoryStatus = "published" // Опубликована, доступна читателям
)

// EndingType категория концовки страницы.
type EndingType string

const (
	EndingSuccess EndingType = "success"
	EndingFailure EndingType = "failure"
	EndingNeutral EndingType = "neutral"
)

// Valid сообщает, является ли значение одной из известных категорий.
func (e EndingType) Valid() bool {
	switch e {
	case EndingSuccess, EndingFailure, EndingNeutral:
		return true
	}
	return false
}

// StoryStats агрегированная статистика истории (ведется внешним бэкендом).
type StoryStats struct {
	Views       int                `json:"views"`
	Completions int                `json:"completions"`
	Endings     map[EndingType]int `json:"endings,omitempty"` // Счетчики по категориям концовок
}

// Story представляет интерактивную историю автора.
type Story struct {
	ID          uuid.UUID   `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CoverImage  string      `json:"cover_image,omitempty"`
	AuthorID    uuid.UUID   `json:"author_id"`
	Status      StoryStatus `json:"status"`
	Theme       string      `json:"theme,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Stats       StoryStats  `json:"stats"`
}

// StoryFields частичное обновление истории. nil-поля не изменяются.
type StoryFields struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	CoverImage  *string      `json:"cover_image,omitempty"`
	Status      *StoryStatus `json:"status,omitempty"`
	Theme       *string      `json:"theme,omitempty"`
	Tags        *[]string    `json:"tags,omitempty"`
}

// IsEmpty возвращает true, если ни одно поле не задано.
func (f StoryFields) IsEmpty() bool {
	return f.Title == nil && f.Description == nil && f.CoverImage == nil &&
		f.Status == nil && f.Theme == nil && f.Tags == nil
}

// ApplyTo применяет заданные поля к истории.
func (f StoryFields) ApplyTo(s *Story) {
	if f.Title != nil {
		s.Title = *f.Title
	}
	if f.Description != nil {
		s.Description = *f.Description
	}
	if f.CoverImage != nil {
		s.CoverImage = *f.CoverImage
	}
	if f.Status != nil {
		s.Status = *f.Status
	}
	if f.Theme != nil {
		s.Theme = *f.Theme
	}
	if f.Tags != nil {
		s.Tags = append([]string(nil), (*f.Tags)...)
	}
}
