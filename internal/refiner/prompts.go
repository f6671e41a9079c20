package refiner

import "strings"

// refinementPrompts maps a target-language code to the instruction
// prefixed to the machine-translated chunk. The set is closed; languages
// outside it use the English instruction.
var refinementPrompts = map[string]string{
	"en": "Improve this text to sound more natural in English. Return only the improved text:",
	"es": "Mejora este texto para que suene más natural en español. Devuelve solo el texto mejorado:",
	"fr": "Améliorez ce texte pour qu'il sonne plus naturel en français. Retournez uniquement le texte amélioré :",
	"de": "Verbessern Sie diesen Text, damit er auf Deutsch natürlicher klingt. Geben Sie nur den verbesserten Text zurück:",
	"it": "Migliora questo testo per renderlo più naturale in italiano. Restituisci solo il testo migliorato:",
	"pt": "Melhore este texto para soar mais natural em português. Retorne apenas o texto melhorado:",
	"ru": "Улучшите этот текст, чтобы он звучал более естественно на русском языке. Верните только улучшенный текст:",
	"zh": "改善这段文字，使其在中文中更加自然。仅返回改善后的文字：",
	"ja": "この文章を日本語としてより自然に聞こえるように改善してください。改善されたテキストのみを返してください：",
	"ko": "이 텍스트를 한국어로 더 자연스럽게 들리도록 개선하십시오. 개선된 텍스트만 반환하십시오:",
}

// buildPrompt prefixes the target-language instruction to the draft text
// verbatim.
func buildPrompt(targetLang, text string) string {
	instruction, ok := refinementPrompts[strings.ToLower(targetLang)]
	if !ok {
		instruction = refinementPrompts["en"]
	}
	return instruction + "\n\n" + text
}
