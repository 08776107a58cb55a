package badge

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

var (
	badgeTypeTag  = "badgetype"
	badgeTypeText = "invalid badge type"

	badgeRarityTag  = "badgerarity"
	badgeRarityText = "invalid badge rarity"

	badgeTriggerTag  = "badgetrigger"
	badgeTriggerText = "invalid badge trigger"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(badgeTypeTag, oneOfValidation(AllTypes))
	core.RegisterCustomTranslation(validate, translator, badgeTypeTag, badgeTypeText)

	_ = validate.RegisterValidation(badgeRarityTag, oneOfValidation(AllRarities))
	core.RegisterCustomTranslation(validate, translator, badgeRarityTag, badgeRarityText)

	_ = validate.RegisterValidation(badgeTriggerTag, oneOfValidation(AllTriggers))
	core.RegisterCustomTranslation(validate, translator, badgeTriggerTag, badgeTriggerText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}
