package media

import "strings"

const summaryInstruction = "You summarize video transcripts. Reply with three to five short bullet points in the transcript's language. No preamble."

// maxSummaryInput caps the transcript sent to a summarizer, in runes.
const maxSummaryInput = 12000

func summaryInput(text string) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) > maxSummaryInput {
		return string(r[:maxSummaryInput])
	}
	return text
}
