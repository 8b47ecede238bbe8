package markup

import (
	lru "github.com/hashicorp/golang-lru"
)

const defaultCacheSize = 4096

// Cache хранит результаты Parse по исходному тексту выбора.
// Безопасен для конкурентного использования (lru.Cache сам берет блокировку).
type Cache struct {
	entries *lru.Cache
}

// NewCache создает кэш заданного размера. size <= 0 означает размер по умолчанию.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, _ := lru.New(size)
	return &Cache{entries: entries}
}

// Get возвращает разобранный текст, разбирая его при промахе.
func (c *Cache) Get(text string) Parsed {
	if c == nil || c.entries == nil {
		return Parse(text)
	}
	if v, ok := c.entries.Get(text); ok {
		return v.(Parsed)
	}
	p := Parse(text)
	c.entries.Add(text, p)
	return p
}

// GetAll разбирает список текстов через кэш.
func (c *Cache) GetAll(texts []string) []Parsed {
	out := make([]Parsed, len(texts))
	for i, t := range texts {
		out[i] = c.Get(t)
	}
	return out
}

// Len количество закэшированных записей.
func (c *Cache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}
