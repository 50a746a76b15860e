package insight

import "regexp"

var spanishPattern = regexp.MustCompile(`(?i)(^|[^\p{L}])(qué|cómo|por qué|cuándo|dónde|quién|cuál|dame|dime|explica|análisis)([^\p{L}]|$)`)

// DetectLanguage returns "es" for Spanish questions, "en" otherwise
func DetectLanguage(message string) string {
	if spanishPattern.MatchString(message) {
		return "es"
	}
	return "en"
}

// languageName is used in prompts
func languageName(lang string) string {
	if lang == "es" {
		return "Spanish"
	}
	return "English"
}
