package geometry_test

import (
	"testing"

	"gamebook-server/internal/geometry"
	"gamebook-server/internal/models"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-9

func TestPixelsToPercentage(t *testing.T) {
	t.Run("Обычный контейнер", func(t *testing.T) {
		got := geometry.PixelsToPercentage(
			geometry.Rect{X: 100, Y: 50, Width: 200, Height: 100},
			geometry.Container{Width: 800, Height: 400},
		)
		assert.InDelta(t, 12.5, got.X, tolerance)
		assert.InDelta(t, 12.5, got.Y, tolerance)
		assert.InDelta(t, 25, got.Width, tolerance)
		assert.InDelta(t, 25, got.Height, tolerance)
	})

	t.Run("Вырожденный контейнер", func(t *testing.T) {
		r := geometry.Rect{X: 10, Y: 10, Width: 10, Height: 10}
		assert.Equal(t, geometry.Rect{}, geometry.PixelsToPercentage(r, geometry.Container{Width: 0, Height: 300}))
		assert.Equal(t, geometry.Rect{}, geometry.PixelsToPercentage(r, geometry.Container{Width: 300, Height: 0}))
	})
}

func TestRoundTrip(t *testing.T) {
	containers := []geometry.Container{
		{Width: 1, Height: 1},
		{Width: 1920, Height: 1080},
		{Width: 333.3, Height: 77.7},
		{Width: 4096, Height: 3},
	}
	rects := []geometry.Rect{
		{},
		{X: 1, Y: 2, Width: 3, Height: 4},
		{X: 12.75, Y: 640.5, Width: 99.125, Height: 0.5},
		{X: 1919, Y: 1079, Width: 1, Height: 1},
	}
	for _, c := range containers {
		for _, r := range rects {
			back := geometry.PercentageToPixels(geometry.PixelsToPercentage(r, c), c)
			assert.InDelta(t, r.X, back.X, 1e-6)
			assert.InDelta(t, r.Y, back.Y, 1e-6)
			assert.InDelta(t, r.Width, back.Width, 1e-6)
			assert.InDelta(t, r.Height, back.Height, 1e-6)
		}
	}
}

func TestClamp(t *testing.T) {
	got := geometry.Clamp(geometry.Rect{X: -5, Y: 90, Width: 120, Height: 30})
	assert.Equal(t, geometry.Rect{X: 0, Y: 90, Width: 100, Height: 10}, got)
	assert.True(t, geometry.InBounds(got))
	assert.False(t, geometry.InBounds(geometry.Rect{X: 50, Width: 60}))
}

func TestHotspotAdapters(t *testing.T) {
	h := models.Hotspot{Label: "Дверь"}
	geometry.ApplyRect(&h, geometry.Rect{X: 10, Y: 20, Width: 30, Height: 40})
	assert.Equal(t, geometry.Rect{X: 10, Y: 20, Width: 30, Height: 40}, geometry.HotspotRect(h))
	assert.True(t, geometry.HotspotRect(h).Contains(25, 45))
	assert.False(t, geometry.HotspotRect(h).Contains(5, 45))
}
