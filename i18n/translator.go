// Package i18n supplies localized message text for validation issue codes.
package i18n

// Translator retrieves localized messages for issue codes. data provides
// optional metadata to embed in the message (for example, "expected" or
// "allowed").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	var msg string
	switch t.lang {
	case "ja":
		switch code {
		case "invalid_type":
			msg = "型が不正です"
		case "missing_property":
			msg = "必須プロパティが不足しています"
		case "unexpected_property":
			msg = "未知のプロパティです"
		case "invalid_enum":
			msg = "許可されていない値です"
		case "invalid_literal":
			msg = "許可されていない値です"
		case "coercion_failed":
			msg = "変換できません"
		case "wrong_length":
			msg = "長さが不正です"
		case "out_of_range":
			msg = "値が範囲外です"
		case "too_small", "too_big", "too_short", "too_long", "too_few_items", "too_many_items":
			msg = "制約違反です"
		case "pattern":
			msg = "パターンに一致しません"
		case "multiple_of":
			msg = "倍数制約に違反しています"
		case "duplicate_item":
			msg = "要素が重複しています"
		}
	default: // "en"
		switch code {
		case "invalid_type":
			msg = "invalid type"
		case "missing_property":
			msg = "missing property"
		case "unexpected_property":
			msg = "unexpected property"
		case "invalid_enum":
			msg = "not a valid member"
		case "invalid_literal":
			msg = "not a permitted value"
		case "coercion_failed":
			msg = "cannot coerce value"
		case "wrong_length":
			msg = "wrong length"
		case "out_of_range":
			msg = "value out of range"
		case "too_small":
			msg = "less than minimum"
		case "too_big":
			msg = "greater than maximum"
		case "too_short":
			msg = "shorter than minimum length"
		case "too_long":
			msg = "longer than maximum length"
		case "too_few_items":
			msg = "fewer items than minimum"
		case "too_many_items":
			msg = "more items than maximum"
		case "pattern":
			msg = "does not match pattern"
		case "multiple_of":
			msg = "not a multiple"
		case "duplicate_item":
			msg = "duplicate item"
		}
	}
	if msg == "" {
		msg = code
	}
	if v, ok := data["expected"]; ok {
		msg += " (expected " + v + ")"
	}
	if v, ok := data["allowed"]; ok {
		msg += " (allowed: " + v + ")"
	}
	if v, ok := data["want"]; ok {
		msg += " (want " + v + ")"
	}
	return msg
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
