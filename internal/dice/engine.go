// Package dice реализует проверки 1d20 + бонус против сложности и
// маршрутизацию результата броска по выборам страницы.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"

	"gamebook-server/internal/markup"
)

// Sides число граней кубика проверки.
const Sides = 20

// Roller источник случайных чисел. *rand.Rand подходит напрямую,
// в тестах подставляется детерминированная заглушка.
type Roller interface {
	Intn(n int) int
}

// CheckResult результат одной проверки.
type CheckResult struct {
	Roll       int  `json:"roll"`
	Bonus      int  `json:"bonus"`
	Total      int  `json:"total"`
	Difficulty int  `json:"difficulty"`
	Success    bool `json:"success"`
}

// Engine бросает кубик. Безопасен для конкурентного использования.
type Engine struct {
	mu     sync.Mutex
	roller Roller
}

// NewEngine создает движок поверх заданного источника.
func NewEngine(roller Roller) *Engine {
	return &Engine{roller: roller}
}

// NewSeededEngine создает движок с детерминированным генератором.
func NewSeededEngine(seed int64) *Engine {
	return NewEngine(rand.New(rand.NewSource(seed)))
}

// NewRandomEngine создает движок с зерном из crypto/rand.
func NewRandomEngine() (*Engine, error) {
	seed, err := NewSeed()
	if err != nil {
		return nil, err
	}
	return NewSeededEngine(seed), nil
}

// NewSeed генерирует зерно через crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Roll возвращает равномерное значение в [1,20].
func (e *Engine) Roll() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roller.Intn(Sides) + 1
}

// RollCheck бросает кубик и сравнивает roll+bonus со сложностью.
// Сложность вписывается в 1..30.
func (e *Engine) RollCheck(difficulty, bonus int) CheckResult {
	return Evaluate(e.Roll(), difficulty, bonus)
}

// Evaluate вычисляет исход проверки для уже выпавшего значения.
func Evaluate(roll, difficulty, bonus int) CheckResult {
	difficulty = markup.ClampDifficulty(difficulty)
	total := roll + bonus
	return CheckResult{
		Roll:       roll,
		Bonus:      bonus,
		Total:      total,
		Difficulty: difficulty,
		Success:    total >= difficulty,
	}
}
