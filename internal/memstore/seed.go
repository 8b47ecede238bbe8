package memstore

import (
	"encoding/json"
	"fmt"
	"os"

	"gamebook-server/internal/models"
)

// seedFile формат файла с демонстрационными историями.
type seedFile struct {
	Stories []struct {
		Story models.Story  `json:"story"`
		Pages []models.Page `json:"pages"`
	} `json:"stories"`
}

// LoadSeedFile загружает истории из JSON-файла. Отсутствующий файл не ошибка.
func (s *Store) LoadSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for _, entry := range seed.Stories {
		s.Seed(entry.Story, entry.Pages)
	}
	return len(seed.Stories), nil
}
