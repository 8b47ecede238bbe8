package editor

import "gamebook-server/internal/models"

// GridConfig сетка автоматической раскладки узлов без сохраненной позиции.
type GridConfig struct {
	Columns  int
	SpacingX float64
	SpacingY float64
	OriginX  float64
	OriginY  float64
}

func DefaultGrid() GridConfig {
	return GridConfig{Columns: 4, SpacingX: 300, SpacingY: 200, OriginX: 50, OriginY: 50}
}

// Position позиция i-го узла в порядке страниц.
func (g GridConfig) Position(i int) models.Position {
	cols := g.Columns
	if cols <= 0 {
		cols = 1
	}
	if i < 0 {
		i = 0
	}
	return models.Position{
		X: g.OriginX + float64(i%cols)*g.SpacingX,
		Y: g.OriginY + float64(i/cols)*g.SpacingY,
	}
}
