package translation

import "strings"

// DefaultLanguage is the code replies are generated in. Translating into it is
// a no-op.
const DefaultLanguage = "en"

// Language is one selectable reply language.
type Language struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

var languages = []Language{
	{Name: "Afrikaans", Code: "af"},
	{Name: "Arabic", Code: "ar"},
	{Name: "Bengali", Code: "bn"},
	{Name: "Bosnian", Code: "bs"},
	{Name: "Catalan", Code: "ca"},
	{Name: "Czech", Code: "cs"},
	{Name: "Welsh", Code: "cy"},
	{Name: "Danish", Code: "da"},
	{Name: "German", Code: "de"},
	{Name: "Greek", Code: "el"},
	{Name: "English", Code: "en"},
	{Name: "Esperanto", Code: "eo"},
	{Name: "Spanish", Code: "es"},
	{Name: "Estonian", Code: "et"},
	{Name: "Finnish", Code: "fi"},
	{Name: "French", Code: "fr"},
	{Name: "Gujarati", Code: "gu"},
	{Name: "Hindi", Code: "hi"},
	{Name: "Croatian", Code: "hr"},
	{Name: "Hungarian", Code: "hu"},
	{Name: "Indonesian", Code: "id"},
	{Name: "Icelandic", Code: "is"},
	{Name: "Italian", Code: "it"},
	{Name: "Japanese", Code: "ja"},
	{Name: "Javanese", Code: "jw"},
	{Name: "Khmer", Code: "km"},
	{Name: "Kannada", Code: "kn"},
	{Name: "Korean", Code: "ko"},
	{Name: "Latin", Code: "la"},
	{Name: "Latvian", Code: "lv"},
	{Name: "Macedonian", Code: "mk"},
	{Name: "Malayalam", Code: "ml"},
	{Name: "Marathi", Code: "mr"},
	{Name: "Myanmar (Burmese)", Code: "my"},
	{Name: "Nepali", Code: "ne"},
	{Name: "Dutch", Code: "nl"},
	{Name: "Norwegian", Code: "no"},
	{Name: "Punjabi", Code: "pa"},
	{Name: "Polish", Code: "pl"},
	{Name: "Portuguese", Code: "pt"},
	{Name: "Romanian", Code: "ro"},
	{Name: "Russian", Code: "ru"},
	{Name: "Sinhala", Code: "si"},
	{Name: "Slovak", Code: "sk"},
	{Name: "Albanian", Code: "sq"},
	{Name: "Serbian", Code: "sr"},
	{Name: "Sundanese", Code: "su"},
	{Name: "Swedish", Code: "sv"},
	{Name: "Swahili", Code: "sw"},
	{Name: "Tamil", Code: "ta"},
	{Name: "Telugu", Code: "te"},
	{Name: "Thai", Code: "th"},
	{Name: "Filipino", Code: "tl"},
	{Name: "Turkish", Code: "tr"},
	{Name: "Ukrainian", Code: "uk"},
	{Name: "Urdu", Code: "ur"},
	{Name: "Vietnamese", Code: "vi"},
	{Name: "Chinese (Mandarin)", Code: "zh-CN"},
}

// Languages returns the supported languages in display order.
func Languages() []Language {
	out := make([]Language, len(languages))
	copy(out, languages)
	return out
}

// ResolveLanguage accepts a display name or a code (case-insensitive) and
// returns the canonical code.
func ResolveLanguage(nameOrCode string) (string, bool) {
	key := strings.TrimSpace(nameOrCode)
	if key == "" {
		return "", false
	}
	for _, l := range languages {
		if strings.EqualFold(l.Name, key) || strings.EqualFold(l.Code, key) {
			return l.Code, true
		}
	}
	return "", false
}
