package editor

import (
	"errors"
	"fmt"

	"gamebook-server/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const (
	MaxContentLength    = 20000
	MaxImageRefLength   = 2048
	MaxChoiceTextLength = 500
	MaxHotspotLabel     = 200
)

func invalid(err error) error {
	return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
}

func validateUUID(value interface{}) error {
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return errors.New("must be a valid page id")
	}
	return nil
}

func validateDiceRoll(d *models.DiceRoll) error {
	if d == nil || !d.Enabled {
		return nil
	}
	return validation.ValidateStruct(d,
		validation.Field(&d.Difficulty, validation.Required, validation.Min(models.MinDifficulty), validation.Max(models.MaxDifficulty)),
		validation.Field(&d.CheckType, validation.Required, validation.In(models.CheckCombat, models.CheckStealth, models.CheckPersuasion, models.CheckCustom)),
	)
}

func validateChoiceText(text string) error {
	return validation.Validate(text, validation.Required, validation.Length(1, MaxChoiceTextLength))
}

func validateChoice(ch models.Choice) error {
	err := validation.ValidateStruct(&ch,
		validation.Field(&ch.Text, validation.Required, validation.Length(1, MaxChoiceTextLength)),
		validation.Field(&ch.TargetPageID, validation.By(validateUUID)),
	)
	if err != nil {
		return err
	}
	if ch.Condition != nil && ch.Condition.Type != models.ConditionHasItem {
		return fmt.Errorf("unsupported condition type %q", ch.Condition.Type)
	}
	for _, r := range ch.Rewards {
		if r.Type != models.RewardAddItem {
			return fmt.Errorf("unsupported reward type %q", r.Type)
		}
	}
	return validateDiceRoll(ch.DiceRoll)
}

func validateHotspot(h models.Hotspot) error {
	err := validation.ValidateStruct(&h,
		validation.Field(&h.X, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&h.Y, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&h.Width, validation.Required, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&h.Height, validation.Required, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&h.Label, validation.Length(0, MaxHotspotLabel)),
		validation.Field(&h.TargetPageID, validation.By(validateUUID)),
	)
	if err != nil {
		return err
	}
	return validateDiceRoll(h.DiceRoll)
}

// validatePageFields проверяет частичное обновление страницы.
func validatePageFields(f models.PageFields) error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Content, validation.Length(0, MaxContentLength)),
		validation.Field(&f.Image, validation.Length(0, MaxImageRefLength)),
		validation.Field(&f.EndingType, validation.In(models.EndingSuccess, models.EndingFailure, models.EndingNeutral)),
	)
	if err != nil {
		return invalid(err)
	}
	if f.Choices != nil {
		for i, ch := range *f.Choices {
			if err := validateChoice(ch); err != nil {
				return invalid(fmt.Errorf("choices[%d]: %w", i, err))
			}
		}
	}
	if f.Hotspots != nil {
		for i, h := range *f.Hotspots {
			if err := validateHotspot(h); err != nil {
				return invalid(fmt.Errorf("hotspots[%d]: %w", i, err))
			}
		}
	}
	return nil
}
