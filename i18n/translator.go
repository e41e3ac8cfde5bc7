package i18n

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "expected" or "key").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "invalid_type":
			return "型が不正です"
		case "required":
			return "必須プロパティが不足しています"
		case "unknown_key":
			return "未知のキーです"
		case "schema_violation":
			return "スキーマに違反しています"
		case "ref_unresolved":
			return "$ref を解決できません"
		case "missing_bootstrap":
			return "先頭レコードがブートストラップ宣言ではありません"
		case "declare_before_use":
			return "型が宣言前に使用されています"
		case "lineage_violation":
			return "系譜ツリーに違反しています"
		case "duplicate_version":
			return "バージョンが重複しています"
		case "unknown_parent":
			return "親バージョンが未宣言です"
		case "malformed_event":
			return "イベントの形式が不正です"
		case "parse_error":
			return "解析エラー"
		}
	default: // "en"
		switch code {
		case "invalid_type":
			return "invalid type"
		case "required":
			return "required property missing"
		case "unknown_key":
			return "unknown key"
		case "schema_violation":
			return "schema violation"
		case "ref_unresolved":
			return "unresolved $ref"
		case "missing_bootstrap":
			return "first record is not the bootstrap self-declaration"
		case "declare_before_use":
			return "type used before declaration"
		case "lineage_violation":
			return "lineage tree violation"
		case "duplicate_version":
			return "duplicate version"
		case "unknown_parent":
			return "unknown parent version"
		case "malformed_event":
			return "malformed event"
		case "parse_error":
			return "parse error"
		}
	}
	return code
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
