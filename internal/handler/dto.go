package handler

import (
	"fmt"
	"strings"

	"gamebook-server/internal/geometry"
	"gamebook-server/internal/models"
	"gamebook-server/internal/service"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var notNilUUID = validation.By(func(value interface{}) error {
	if id, ok := value.(uuid.UUID); !ok || id == uuid.Nil {
		return fmt.Errorf("must be a valid UUID")
	}
	return nil
})

// --- Редактор --- //

type openEditorRequest struct {
	StoryID uuid.UUID `json:"story_id"`
}

func (r openEditorRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.StoryID, notNilUUID))
}

type editorSessionResponse struct {
	SessionID uuid.UUID         `json:"session_id"`
	StoryID   uuid.UUID         `json:"story_id"`
	Graph     *models.FlowGraph `json:"graph"`
	SaveState models.SaveState  `json:"save_state"`
}

func newEditorSessionResponse(sess *service.EditorSession) editorSessionResponse {
	return editorSessionResponse{
		SessionID: sess.ID,
		StoryID:   sess.StoryID,
		Graph:     sess.Model.Graph(),
		SaveState: sess.Sync.State(),
	}
}

type addPageRequest struct {
	Position *models.Position `json:"position,omitempty"`
}

type connectRequest struct {
	Source uuid.UUID `json:"source"`
	Target uuid.UUID `json:"target"`
}

func (r connectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source, notNilUUID),
		validation.Field(&r.Target, notNilUUID),
	)
}

type updateEdgeRequest struct {
	Label string `json:"label"`
}

type addHotspotRequest struct {
	Rect         geometry.Rect      `json:"rect"`
	Container    geometry.Container `json:"container"`
	Label        string             `json:"label"`
	TargetPageID uuid.UUID          `json:"target_page_id"`
	DiceRoll     *models.DiceRoll   `json:"dice_roll,omitempty"`
}

func (r addHotspotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TargetPageID, notNilUUID),
		validation.Field(&r.Container, validation.By(func(value interface{}) error {
			if c, _ := value.(geometry.Container); c.Width <= 0 || c.Height <= 0 {
				return fmt.Errorf("image size must be positive")
			}
			return nil
		})),
	)
}

// parseEdgeID разбирает "e-<source>-<target>" на идентификаторы страниц.
func parseEdgeID(edgeID string) (uuid.UUID, uuid.UUID, error) {
	const idLen = 36
	rest, ok := strings.CutPrefix(edgeID, "e-")
	if !ok || len(rest) != 2*idLen+1 || rest[idLen] != '-' {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: malformed edge id %q", models.ErrInvalidInput, edgeID)
	}
	source, err := uuid.Parse(rest[:idLen])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: malformed edge source %q", models.ErrInvalidInput, edgeID)
	}
	target, err := uuid.Parse(rest[idLen+1:])
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: malformed edge target %q", models.ErrInvalidInput, edgeID)
	}
	return source, target, nil
}

// --- Прохождение --- //

type startPlayRequest struct {
	StoryID uuid.UUID `json:"story_id"`
	Preview bool      `json:"preview"`
}

func (r startPlayRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.StoryID, notNilUUID))
}

type selectClassRequest struct {
	Class string `json:"class"`
}

func (r selectClassRequest) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Class, validation.Required))
}

type chooseRequest struct {
	PageID      uuid.UUID `json:"page_id"`
	ChoiceIndex *int      `json:"choice_index"`
}

func (r chooseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PageID, notNilUUID),
		validation.Field(&r.ChoiceIndex, validation.NotNil),
	)
}

type chooseHotspotRequest struct {
	PageID    uuid.UUID `json:"page_id"`
	HotspotID uuid.UUID `json:"hotspot_id"`
}

func (r chooseHotspotRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PageID, notNilUUID),
		validation.Field(&r.HotspotID, notNilUUID),
	)
}

type classesResponse struct {
	Classes []string `json:"classes"`
}
