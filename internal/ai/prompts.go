package ai

import "strings"

// Плейсхолдеры в шаблонах промптов
const (
	localeVariable   = "{{locale}}"
	truthVariable    = "{{truth}}"
	surfaceVariable  = "{{surface}}"
	solutionVariable = "{{solution}}"
	triesVariable    = "{{tries}}"
	hintsVariable    = "{{hints}}"
)

// System prompts for each judge operation. The model owns all semantic
// judgment; code only substitutes placeholders and validates the output
// shape afterwards.
const (
	createSoupPrompt = `You are a master of "turtle soup" lateral-thinking puzzles.
Invent one original puzzle. The surface must describe a strange but short scenario;
the truth must fully explain it with a surprising yet logical story.
Answer strictly in the language of locale "` + localeVariable + `".
Respond with a single JSON object and nothing else:
{"title": "...", "surface": "...", "truth": "..."}`

	judgeTryPrompt = `You are the referee of a "turtle soup" puzzle. The hidden truth is:
` + truthVariable + `
The player asks one question. If it is a closed yes/no question, answer it against the truth.
If it is open-ended or not a question, reject it.
Answer strictly in the language of locale "` + localeVariable + `".
Respond with a single JSON object and nothing else, one of:
{"status": "valid", "response": "yes" | "no" | "unrelated", "reason": "..."}
{"status": "invalid", "reason": "..."}`

	judgeSolutionPrompt = `You are the referee of a "turtle soup" puzzle. The hidden truth is:
` + truthVariable + `
Decide whether the player's proposed solution captures the core logic of the truth.
Minor wording differences do not matter; the causal explanation must match.
Respond with exactly one word: true or false. No other text.`

	judgeSolutionContext = `Truth:
` + truthVariable + `

Player's solution:
` + solutionVariable

	evaluateSolutionPrompt = `You are the referee of a "turtle soup" puzzle. The player has just solved it.
Write a short debrief of how well the player reasoned and give an integer score from 0 to 100
(fewer wasted questions and hints mean a higher score).
Answer strictly in the language of locale "` + localeVariable + `".
Respond with a single JSON object and nothing else:
{"explanation": "...", "score": 0-100}`

	evaluateSolutionContext = `Truth:
` + truthVariable + `

Player's solution:
` + solutionVariable + `

Question history:
` + triesVariable + `

Hints used: ` + hintsVariable

	giveUpPrompt = `You are the narrator of a "turtle soup" puzzle. The player has given up.
Reveal the full truth as a short, satisfying narrative that connects the surface to the truth.
Answer strictly in the language of locale "` + localeVariable + `". Respond with plain text only.`

	giveUpContext = `Surface:
` + surfaceVariable + `

Truth:
` + truthVariable

	hintPrompt = `You are the referee of a "turtle soup" puzzle. The hidden truth is:
` + truthVariable + `
Give the player exactly one new hint. It must not repeat earlier hints, must not reveal
the truth outright, and must nudge the player past where their questions got stuck.
Answer strictly in the language of locale "` + localeVariable + `". Respond with plain text only.`

	hintContext = `Question history:
` + triesVariable + `

Hints already given:
` + hintsVariable
)

// CreateSoupPrompt возвращает системный промпт генерации загадки.
func CreateSoupPrompt(locale string) string {
	return strings.ReplaceAll(createSoupPrompt, localeVariable, locale)
}

// JudgeTryPrompt возвращает системный промпт классификации вопроса.
func JudgeTryPrompt(locale, truth string) string {
	s := strings.ReplaceAll(judgeTryPrompt, truthVariable, truth)
	return strings.ReplaceAll(s, localeVariable, locale)
}

// JudgeSolutionPrompts возвращает системный промпт и контекст фазы проверки решения.
func JudgeSolutionPrompts(truth, solution string) (system, user string) {
	system = strings.ReplaceAll(judgeSolutionPrompt, truthVariable, truth)
	user = strings.ReplaceAll(judgeSolutionContext, truthVariable, truth)
	user = strings.ReplaceAll(user, solutionVariable, solution)
	return system, user
}

// EvaluateSolutionPrompts возвращает промпты фазы оценки решения.
func EvaluateSolutionPrompts(locale, truth, solution, triesText, hintsText string) (system, user string) {
	system = strings.ReplaceAll(evaluateSolutionPrompt, localeVariable, locale)
	user = strings.ReplaceAll(evaluateSolutionContext, truthVariable, truth)
	user = strings.ReplaceAll(user, solutionVariable, solution)
	user = strings.ReplaceAll(user, triesVariable, triesText)
	user = strings.ReplaceAll(user, hintsVariable, hintsText)
	return system, user
}

// GiveUpPrompts возвращает промпты для повествования разгадки.
func GiveUpPrompts(locale, surface, truth string) (system, user string) {
	system = strings.ReplaceAll(giveUpPrompt, localeVariable, locale)
	user = strings.ReplaceAll(giveUpContext, surfaceVariable, surface)
	user = strings.ReplaceAll(user, truthVariable, truth)
	return system, user
}

// HintPrompts возвращает промпты для запроса подсказки.
func HintPrompts(locale, truth, triesText, hintsText string) (system, user string) {
	system = strings.ReplaceAll(hintPrompt, truthVariable, truth)
	system = strings.ReplaceAll(system, localeVariable, locale)
	user = strings.ReplaceAll(hintContext, triesVariable, triesText)
	user = strings.ReplaceAll(user, hintsVariable, hintsText)
	return system, user
}
