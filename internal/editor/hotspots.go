package editor

import (
	"fmt"

	"gamebook-server/internal/geometry"
	"gamebook-server/internal/models"

	"github.com/google/uuid"
)

// HotspotInput новая зона в пикселях отображаемого изображения.
type HotspotInput struct {
	Rect         geometry.Rect
	Container    geometry.Container
	Label        string
	TargetPageID uuid.UUID
	DiceRoll     *models.DiceRoll
}

// AddHotspot переводит пиксельный прямоугольник в проценты и добавляет зону.
// В хранилище попадают только проценты.
func (m *Model) AddHotspot(pageID uuid.UUID, in HotspotInput) (*models.Hotspot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pageLocked(pageID)
	if err != nil {
		return nil, err
	}
	if in.Container.Degenerate() {
		return nil, fmt.Errorf("%w: image container has zero size", models.ErrInvalidInput)
	}
	if _, err := m.pageLocked(in.TargetPageID); err != nil {
		return nil, err
	}

	h := models.Hotspot{ID: uuid.New(), Label: in.Label, TargetPageID: in.TargetPageID, DiceRoll: in.DiceRoll}
	geometry.ApplyRect(&h, geometry.Clamp(geometry.PixelsToPercentage(in.Rect, in.Container)))
	if err := validateHotspot(h); err != nil {
		return nil, invalid(err)
	}

	next := page.Clone()
	next.Hotspots = append(next.Hotspots, h)
	if err := m.commitLocked(next, models.HotspotsField(next.Hotspots), nil); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpdateHotspot заменяет зону с тем же ID. Геометрия ожидается в процентах.
func (m *Model) UpdateHotspot(pageID uuid.UUID, h models.Hotspot) (*models.Hotspot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pageLocked(pageID)
	if err != nil {
		return nil, err
	}
	_, idx := page.HotspotByID(h.ID)
	if idx < 0 {
		return nil, models.ErrHotspotNotFound
	}
	if _, err := m.pageLocked(h.TargetPageID); err != nil {
		return nil, err
	}
	geometry.ApplyRect(&h, geometry.Clamp(geometry.HotspotRect(h)))
	if err := validateHotspot(h); err != nil {
		return nil, invalid(err)
	}

	next := page.Clone()
	next.Hotspots[idx] = h
	if err := m.commitLocked(next, models.HotspotsField(next.Hotspots), nil); err != nil {
		return nil, err
	}
	return &h, nil
}

// RemoveHotspot удаляет зону.
func (m *Model) RemoveHotspot(pageID, hotspotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	page, err := m.pageLocked(pageID)
	if err != nil {
		return err
	}
	_, idx := page.HotspotByID(hotspotID)
	if idx < 0 {
		return models.ErrHotspotNotFound
	}
	next := page.Clone()
	next.Hotspots = append(next.Hotspots[:idx], next.Hotspots[idx+1:]...)
	return m.commitLocked(next, models.HotspotsField(next.Hotspots), nil)
}
