// Package i18n translates API error codes. Italian is the default language.
package i18n

import "strings"

const DefaultLang = "it"

var messages = map[string]map[string]string{
	"it": {
		"required":                 "Obbligatorio",
		"validation_failed":        "Dati non validi",
		"not_found":                "Elemento non trovato",
		"cannot_remove_last_month": "Impossibile eliminare l'ultimo mese",
		"internal_error":           "Errore interno",
		"QUOTA_EXCEEDED":           "Quota API superata, riprovare tra un minuto",
		"DAILY_QUOTA_EXCEEDED":     "Quota giornaliera esaurita",
		"INVALID_CREDENTIALS":      "Chiave API non valida",
		"UPSTREAM":                 "Errore del servizio di estrazione",
		"AI_DISABLED":              "Estrazione AI non configurata",
	},
	"en": {
		"required":                 "Required",
		"validation_failed":        "Validation failed",
		"not_found":                "Not found",
		"cannot_remove_last_month": "The last month cannot be removed",
		"internal_error":           "Internal error",
		"QUOTA_EXCEEDED":           "API quota exceeded, retry in a minute",
		"DAILY_QUOTA_EXCEEDED":     "Daily quota exhausted",
		"INVALID_CREDENTIALS":      "Invalid API key",
		"UPSTREAM":                 "Extraction service error",
		"AI_DISABLED":              "AI extraction is not configured",
	},
}

// DetectLanguage picks the first supported language of an Accept-Language header.
func DetectLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		base := strings.SplitN(tag, "-", 2)[0]
		if _, ok := messages[base]; ok {
			return base
		}
	}
	return DefaultLang
}

// T returns the message for code, falling back to Italian and then to the code itself.
func T(lang, code string) string {
	if m, ok := messages[lang]; ok {
		if s, ok := m[code]; ok {
			return s
		}
	}
	if s, ok := messages[DefaultLang][code]; ok {
		return s
	}
	return code
}
