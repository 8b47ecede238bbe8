package play

import (
	"sort"
	"strings"

	"gamebook-server/internal/markup"
)

// ClassProfile класс персонажа с бонусами к отслеживаемым навыкам.
type ClassProfile struct {
	Name    string               `json:"name"`
	Bonuses map[markup.Skill]int `json:"bonuses"`
}

// Bonus бонус класса к навыку.
func (c *ClassProfile) Bonus(skill markup.Skill) int {
	if c == nil {
		return 0
	}
	return c.Bonuses[skill]
}

// Rules таблицы классов и снаряжения. Ключи сравниваются без учета регистра.
type Rules struct {
	classes   map[string]ClassProfile
	equipment map[string]markup.Buff
}

// NewRules собирает правила из профилей классов и бонусов предметов.
func NewRules(classes []ClassProfile, equipment map[string]markup.Buff) *Rules {
	r := &Rules{
		classes:   make(map[string]ClassProfile, len(classes)),
		equipment: make(map[string]markup.Buff, len(equipment)),
	}
	for _, c := range classes {
		r.classes[strings.ToLower(c.Name)] = c
	}
	for item, b := range equipment {
		r.equipment[strings.ToLower(item)] = b
	}
	return r
}

// DefaultRules классы Guerrier/Voleur/Mage и базовое снаряжение.
func DefaultRules() *Rules {
	return NewRules(
		[]ClassProfile{
			{Name: "Guerrier", Bonuses: map[markup.Skill]int{markup.SkillCombat: 3, markup.SkillAgility: 0}},
			{Name: "Voleur", Bonuses: map[markup.Skill]int{markup.SkillCombat: 1, markup.SkillAgility: 3}},
			{Name: "Mage", Bonuses: map[markup.Skill]int{markup.SkillCombat: 0, markup.SkillAgility: 1}},
		},
		map[string]markup.Buff{
			"Épée":     {Skill: markup.SkillCombat, Amount: 2},
			"Sword":    {Skill: markup.SkillCombat, Amount: 2},
			"Bouclier": {Skill: markup.SkillCombat, Amount: 1},
			"Shield":   {Skill: markup.SkillCombat, Amount: 1},
			"Dague":    {Skill: markup.SkillAgility, Amount: 1},
			"Dagger":   {Skill: markup.SkillAgility, Amount: 1},
			"Cape":     {Skill: markup.SkillAgility, Amount: 1},
			"Cloak":    {Skill: markup.SkillAgility, Amount: 1},
		},
	)
}

// Class ищет профиль класса по имени.
func (r *Rules) Class(name string) (ClassProfile, bool) {
	if r == nil {
		return ClassProfile{}, false
	}
	c, ok := r.classes[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// ClassNames имена зарегистрированных классов в алфавитном порядке.
func (r *Rules) ClassNames() []string {
	names := make([]string, 0, len(r.classes))
	for _, c := range r.classes {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}

// EquipmentBonus суммарный бонус предметов инвентаря к навыку.
func (r *Rules) EquipmentBonus(inventory []string, skill markup.Skill) int {
	if r == nil {
		return 0
	}
	total := 0
	for _, item := range inventory {
		if b, ok := r.equipment[strings.ToLower(item)]; ok && b.Skill == skill {
			total += b.Amount
		}
	}
	return total
}
