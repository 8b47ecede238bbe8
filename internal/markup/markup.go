// Package markup разбирает микро-синтаксис, встроенный в текст выборов:
// корзины исходов броска (≥N, N-M, <N), маркеры проверок ([COMBAT 12], [FUITE], "Fuir"),
// классовые ограничения ([CLASSE Guerrier]), выбор класса ("Classe: Guerrier"),
// выдачу предметов ([+Épée]) и временные бонусы ([BONUS +2 COMBAT]).
//
// Текст разбирается один раз в структуру Parsed. Ошибки разбора никогда не
// возвращаются: некорректное число делает выбор обычным, а не ошибочным.
package markup

import (
	"regexp"
	"strconv"
	"strings"

	"gamebook-server/internal/models"
)

// DefaultDifficulty сложность проверки, если маркер ее не указывает.
const DefaultDifficulty = 10

// OutcomeKind вид корзины исхода.
type OutcomeKind int

const (
	OutcomeNone    OutcomeKind = iota
	OutcomeMin                 // ≥N
	OutcomeRange               // N-M включительно
	OutcomeCeiling             // <N
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMin:
		return "outcome-min"
	case OutcomeRange:
		return "outcome-range"
	case OutcomeCeiling:
		return "outcome-ceiling"
	default:
		return "none"
	}
}

// Outcome корзина исхода. Для OutcomeMin используется Lo, для OutcomeCeiling - Hi.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	Lo   int         `json:"lo,omitempty"`
	Hi   int         `json:"hi,omitempty"`
}

// Matches - итог броска попадает в корзину.
func (o Outcome) Matches(total int) bool {
	switch o.Kind {
	case OutcomeMin:
		return total >= o.Lo
	case OutcomeRange:
		return total >= o.Lo && total <= o.Hi
	case OutcomeCeiling:
		return total < o.Hi
	default:
		return false
	}
}

// Skill навык, к которому применяются бонусы класса и снаряжения.
type Skill string

const (
	SkillCombat  Skill = "combat"
	SkillAgility Skill = "agility"
)

// SkillFor возвращает навык, влияющий на проверку данного типа.
func SkillFor(ct models.CheckType) (Skill, bool) {
	switch ct {
	case models.CheckCombat:
		return SkillCombat, true
	case models.CheckStealth:
		return SkillAgility, true
	}
	return "", false
}

// Check маркер проверки в тексте выбора.
type Check struct {
	Type       models.CheckType `json:"type"`
	Difficulty int              `json:"difficulty"`
	Keyword    string           `json:"keyword"`
	Legacy     bool             `json:"legacy,omitempty"` // Найден по подстроке ("[FUITE", "Fuir"), а не по закрытому тегу
}

// Buff временный бонус, расходуемый следующей проверкой навыка.
type Buff struct {
	Skill  Skill `json:"skill"`
	Amount int   `json:"amount"`
}

// Parsed структурированное представление текста выбора.
type Parsed struct {
	Text        string   `json:"text"`
	Label       string   `json:"label"`
	Outcome     Outcome  `json:"outcome"`
	Check       *Check   `json:"check,omitempty"`
	ClassGate   string   `json:"class_gate,omitempty"`
	ClassOption string   `json:"class_option,omitempty"`
	Items       []string `json:"items,omitempty"`
	Buffs       []Buff   `json:"buffs,omitempty"`
	Malformed   bool     `json:"malformed,omitempty"` // Встречен шаблон с нечитаемым числом
}

// IsOutcome - выбор является корзиной исхода броска.
func (p Parsed) IsOutcome() bool {
	return p.Outcome.Kind != OutcomeNone
}

// IsPlain - никакой разметки не найдено.
func (p Parsed) IsPlain() bool {
	return !p.IsOutcome() && p.Check == nil && p.ClassGate == "" && p.ClassOption == "" &&
		len(p.Items) == 0 && len(p.Buffs) == 0
}

// Kind краткое имя основного варианта разметки.
func (p Parsed) Kind() string {
	switch {
	case p.IsOutcome():
		return p.Outcome.Kind.String()
	case p.Check != nil:
		return "check"
	case p.ClassOption != "":
		return "class-option"
	case p.ClassGate != "":
		return "class-gate"
	case len(p.Items) > 0 || len(p.Buffs) > 0:
		return "reward"
	default:
		return "plain"
	}
}

var (
	minPattern     = regexp.MustCompile(`(?:≥|>=)\s*(\d+)`)
	rangePattern   = regexp.MustCompile(`(?:^|[^\d])(\d+)\s*[-–]\s*(\d+)`)
	ceilingPattern = regexp.MustCompile(`<\s*(\d+)`)
	tagPattern     = regexp.MustCompile(`\[([^\[\]]*)\]`)
	classOptionRe  = regexp.MustCompile(`(?i)^\s*(?:classe|class)\s*:\s*(.+?)\s*$`)
	numberPattern  = regexp.MustCompile(`[+-]?\d+`)
	spacePattern   = regexp.MustCompile(`\s{2,}`)
)

// checkKeywords ключевые слова закрытых тегов проверок (в верхнем регистре).
var checkKeywords = map[string]models.CheckType{
	"COMBAT":     models.CheckCombat,
	"ATTAQUE":    models.CheckCombat,
	"FUITE":      models.CheckStealth,
	"DISCRÉTION": models.CheckStealth,
	"DISCRETION": models.CheckStealth,
	"STEALTH":    models.CheckStealth,
	"PERSUASION": models.CheckPersuasion,
	"DÉ":         models.CheckCustom,
	"DE":         models.CheckCustom,
	"DICE":       models.CheckCustom,
	"CHECK":      models.CheckCustom,
}

// legacyTriggers подстроки, которые исторически запускают проверку без закрытого тега.
// Порядок важен: первая найденная побеждает.
var legacyTriggers = []struct {
	substr string
	typ    models.CheckType
}{
	{"[FUITE", models.CheckStealth},
	{"Fuir", models.CheckStealth},
	{"[COMBAT", models.CheckCombat},
	{"[ATTAQUE", models.CheckCombat},
}

var skillKeywords = map[string]Skill{
	"COMBAT":     SkillCombat,
	"FORCE":      SkillCombat,
	"AGILITÉ":    SkillAgility,
	"AGILITE":    SkillAgility,
	"AGILITY":    SkillAgility,
	"DISCRÉTION": SkillAgility,
	"STEALTH":    SkillAgility,
}

// Parse разбирает текст выбора. Никогда не паникует и не возвращает ошибку.
func Parse(text string) Parsed {
	p := Parsed{Text: text}
	label := text

	if m := classOptionRe.FindStringSubmatch(text); m != nil {
		p.ClassOption = m[1]
		p.Label = m[1]
		return p
	}

	label = parseOutcome(&p, label)
	label = parseTags(&p, label)

	if p.Check == nil {
		for _, trig := range legacyTriggers {
			if strings.Contains(text, trig.substr) {
				p.Check = &Check{Type: trig.typ, Difficulty: DefaultDifficulty, Keyword: trig.substr, Legacy: true}
				break
			}
		}
	}

	label = spacePattern.ReplaceAllString(strings.TrimSpace(label), " ")
	p.Label = label
	return p
}

// ParseAll разбирает список текстов с сохранением порядка.
func ParseAll(texts []string) []Parsed {
	out := make([]Parsed, len(texts))
	for i, t := range texts {
		out[i] = Parse(t)
	}
	return out
}

// parseOutcome ищет корзину исхода: сначала ≥N, затем N-M, затем <N.
func parseOutcome(p *Parsed, label string) string {
	if loc := minPattern.FindStringSubmatchIndex(label); loc != nil {
		n, err := strconv.Atoi(label[loc[2]:loc[3]])
		if err != nil {
			p.Malformed = true
			return label
		}
		p.Outcome = Outcome{Kind: OutcomeMin, Lo: n}
		return label[:loc[0]] + label[loc[1]:]
	}
	if loc := rangePattern.FindStringSubmatchIndex(label); loc != nil {
		lo, errLo := strconv.Atoi(label[loc[2]:loc[3]])
		hi, errHi := strconv.Atoi(label[loc[4]:loc[5]])
		if errLo != nil || errHi != nil {
			p.Malformed = true
			return label
		}
		p.Outcome = Outcome{Kind: OutcomeRange, Lo: lo, Hi: hi}
		// Префикс-разделитель (loc[0]..loc[2]) оставляем в тексте
		return label[:loc[2]] + label[loc[1]:]
	}
	if loc := ceilingPattern.FindStringSubmatchIndex(label); loc != nil {
		n, err := strconv.Atoi(label[loc[2]:loc[3]])
		if err != nil {
			p.Malformed = true
			return label
		}
		p.Outcome = Outcome{Kind: OutcomeCeiling, Hi: n}
		return label[:loc[0]] + label[loc[1]:]
	}
	return label
}

// parseTags разбирает закрытые теги в квадратных скобках. Нераспознанные теги остаются в тексте.
func parseTags(p *Parsed, label string) string {
	return tagPattern.ReplaceAllStringFunc(label, func(tag string) string {
		body := strings.TrimSpace(tag[1 : len(tag)-1])
		if body == "" {
			return tag
		}

		if strings.HasPrefix(body, "+") {
			item := strings.TrimSpace(body[1:])
			if upper := strings.ToUpper(item); strings.HasPrefix(upper, "ITEM ") || strings.HasPrefix(upper, "OBJET ") {
				item = strings.TrimSpace(item[strings.Index(item, " ")+1:])
			}
			if item == "" {
				return tag
			}
			p.Items = append(p.Items, item)
			return ""
		}

		keyword, rest := splitKeyword(body)
		upper := strings.ToUpper(keyword)

		switch upper {
		case "CLASSE", "CLASS":
			if rest == "" {
				return tag
			}
			p.ClassGate = rest
			return ""
		case "BONUS":
			if buff, ok := parseBuff(rest); ok {
				p.Buffs = append(p.Buffs, buff)
				return ""
			}
			p.Malformed = true
			return tag
		}

		if ct, ok := checkKeywords[upper]; ok {
			if p.Check != nil {
				// Учитываем только первый маркер проверки
				return ""
			}
			p.Check = &Check{Type: ct, Difficulty: parseDifficulty(p, rest), Keyword: keyword}
			return ""
		}
		return tag
	})
}

func splitKeyword(body string) (string, string) {
	body = strings.TrimSpace(body)
	idx := strings.IndexAny(body, " :\t")
	if idx < 0 {
		return body, ""
	}
	rest := strings.TrimSpace(strings.TrimLeft(body[idx:], " :\t"))
	return body[:idx], rest
}

func parseDifficulty(p *Parsed, rest string) int {
	raw := numberPattern.FindString(rest)
	if raw == "" {
		return DefaultDifficulty
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.Malformed = true
		return DefaultDifficulty
	}
	return ClampDifficulty(n)
}

func parseBuff(rest string) (Buff, bool) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Buff{}, false
	}
	amount, err := strconv.Atoi(fields[0])
	if err != nil {
		return Buff{}, false
	}
	skill, ok := skillKeywords[strings.ToUpper(fields[1])]
	if !ok {
		return Buff{}, false
	}
	return Buff{Skill: skill, Amount: amount}, true
}

// ClampDifficulty вписывает сложность в допустимый диапазон 1..30.
func ClampDifficulty(d int) int {
	if d < models.MinDifficulty {
		return models.MinDifficulty
	}
	if d > models.MaxDifficulty {
		return models.MaxDifficulty
	}
	return d
}
