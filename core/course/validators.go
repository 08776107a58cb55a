package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/Digitalguyco/convade-backend/core"
)

var (
	difficultyTag  = "difficulty"
	difficultyText = "invalid difficulty level"

	lessonTypeTag  = "lessontype"
	lessonTypeText = "invalid lesson type"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(difficultyTag, difficultyValidation)
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	_ = validate.RegisterValidation(lessonTypeTag, lessonTypeValidation)
	core.RegisterCustomTranslation(validate, translator, lessonTypeTag, lessonTypeText)
}

func difficultyValidation(fl validator.FieldLevel) bool {
	d := fl.Field().String()
	for _, lvl := range AllDifficulties {
		if d == lvl {
			return true
		}
	}
	return false
}

func lessonTypeValidation(fl validator.FieldLevel) bool {
	lt := fl.Field().String()
	for _, t := range AllLessonTypes {
		if lt == t {
			return true
		}
	}
	return false
}
