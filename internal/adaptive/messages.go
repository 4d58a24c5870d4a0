package adaptive

// fetchErrorMessages holds the user-facing text shown when a refresh fails.
// Every failure kind maps to the same message.
var fetchErrorMessages = map[string]string{
	"en": "We couldn't refresh your recommendation. Showing your last one for now.",
	"es": "No pudimos actualizar tu recomendación. Por ahora mostramos la anterior.",
	"de": "Deine Empfehlung konnte nicht aktualisiert werden. Vorerst siehst du die letzte.",
	"fr": "Impossible d'actualiser ta recommandation. La précédente reste affichée.",
	"th": "ไม่สามารถอัปเดตคำแนะนำได้ ขณะนี้แสดงคำแนะนำล่าสุดแทน",
}

// ErrorMessage returns the localized fetch failure text, falling back to English.
func ErrorMessage(locale string) string {
	if msg, ok := fetchErrorMessages[locale]; ok {
		return msg
	}
	return fetchErrorMessages["en"]
}
