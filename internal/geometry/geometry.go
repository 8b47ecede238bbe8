// Package geometry переводит прямоугольники зон между пикселями и процентами
// от размеров фонового изображения.
package geometry

import "gamebook-server/internal/models"

// Rect прямоугольник. Единицы зависят от контекста: пиксели или проценты.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Container размеры изображения в пикселях.
type Container struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Degenerate - у контейнера нулевая ширина или высота.
func (c Container) Degenerate() bool {
	return c.Width == 0 || c.Height == 0
}

// PixelsToPercentage переводит пиксельный прямоугольник в проценты контейнера.
// Для вырожденного контейнера возвращает {0,0,0,0}.
func PixelsToPercentage(r Rect, c Container) Rect {
	if c.Degenerate() {
		return Rect{}
	}
	return Rect{
		X:      r.X / c.Width * 100,
		Y:      r.Y / c.Height * 100,
		Width:  r.Width / c.Width * 100,
		Height: r.Height / c.Height * 100,
	}
}

// PercentageToPixels обратное преобразование.
func PercentageToPixels(r Rect, c Container) Rect {
	return Rect{
		X:      r.X * c.Width / 100,
		Y:      r.Y * c.Height / 100,
		Width:  r.Width * c.Width / 100,
		Height: r.Height * c.Height / 100,
	}
}

// Clamp вписывает процентный прямоугольник в [0,100] по обеим осям.
func Clamp(r Rect) Rect {
	r.X = clamp(r.X, 0, 100)
	r.Y = clamp(r.Y, 0, 100)
	r.Width = clamp(r.Width, 0, 100-r.X)
	r.Height = clamp(r.Height, 0, 100-r.Y)
	return r
}

// InBounds - прямоугольник целиком лежит в процентном пространстве.
func InBounds(r Rect) bool {
	return r.X >= 0 && r.Y >= 0 && r.Width >= 0 && r.Height >= 0 &&
		r.X+r.Width <= 100 && r.Y+r.Height <= 100
}

// Contains - точка (в тех же единицах) попадает в прямоугольник.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// HotspotRect извлекает процентную геометрию зоны.
func HotspotRect(h models.Hotspot) Rect {
	return Rect{X: h.X, Y: h.Y, Width: h.Width, Height: h.Height}
}

// ApplyRect записывает процентную геометрию в зону.
func ApplyRect(h *models.Hotspot, r Rect) {
	h.X, h.Y, h.Width, h.Height = r.X, r.Y, r.Width, r.Height
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
