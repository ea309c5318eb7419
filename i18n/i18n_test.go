package i18n

import "testing"

func TestDetectLanguage(t *testing.T) {
	if DetectLanguage("en-US,en;q=0.9") != "en" {
		t.Fatalf("expected en")
	}
	if DetectLanguage("EN-gb") != "en" {
		t.Fatalf("expected en for EN-gb")
	}
	if DetectLanguage("fr-FR,it;q=0.8") != "it" {
		t.Fatalf("expected it from second choice")
	}
	if DetectLanguage("") != "it" {
		t.Fatalf("expected default it")
	}
}

func TestTranslations(t *testing.T) {
	if T("en", "required") != "Required" {
		t.Fatalf("expected Required")
	}
	if T("it", "required") != "Obbligatorio" {
		t.Fatalf("expected Obbligatorio")
	}
	// unknown code -> fallback to code
	if T("en", "__nope__") != "__nope__" {
		t.Fatalf("expected fallback to code")
	}
	// unknown language -> fallback to it translation if exists
	if T("es", "required") != "Obbligatorio" {
		t.Fatalf("expected it fallback for es lang")
	}
}
