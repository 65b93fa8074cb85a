package empathy

import "strings"

// analyzePrompt asks the model for the four-section emotional intelligence
// breakdown, with particular weight on the "step back" moment of reflection.
const analyzePrompt = `You are an emotional intelligence expert. Analyze this message focusing on emotional awareness and regulation. Pay special attention to whether the person took a "step back" before responding.

The "step back" is a crucial moment of reflection where one asks themselves:
- What am I feeling right now?
- Why am I feeling this way?
- What triggered these emotions?
- What is my goal in this communication?
- Are my current emotions helping or hindering this goal?
- What would be a more constructive way to express my thoughts?

Provide detailed feedback in the following JSON structure:
{
    "self_awareness": {
        "emotional_background": string,  // Identify the emotional undertones and their potential impact
        "present_elements": string,      // What elements of self-awareness are present?
        "missing_elements": string,      // What's missing, especially regarding the "step back" moment?
        "step_back_analysis": string     // Analysis of whether and how effectively the person stepped back before responding
    },
    "self_regulation": {
        "current_phrasing": string,      // How are emotions currently being regulated in the message?
        "improvement_examples": string,   // Specific suggestions for better emotional regulation
        "alternative_phrases": string     // Alternative ways to express the same message with better regulation
    },
    "empathy": {
        "missing_elements": string,      // What empathetic elements are missing?
        "potential_additions": string,    // How could more empathy be added?
        "understanding_examples": string  // Examples of more empathetic approaches
    },
    "social_skills": {
        "current_impact": string,        // How does the message affect social dynamics?
        "improvements": string,          // Suggestions for improving social impact
        "examples": string               // Examples of better social approaches
    }
}

Remember to be specific and provide concrete examples in your analysis.`

// rewritePrompt asks only for the two rewritten versions.
const rewritePrompt = `You are a helpful assistant that rewrites messages to be more empathetic.

Your task is simple - rewrite the message in two versions:
1. long_version: A polite and empathetic version that keeps all the points
2. short_version: A shorter version that keeps the main message

Return ONLY the rewritten messages in this JSON format:
{
    "long_version": string,  // The rewritten message
    "short_version": string  // Shorter version
}

Example:
Input: "This code is terrible!"
Output: {
    "long_version": "I've been reviewing the code and noticed some areas that could be improved. Would you be open to discussing potential refactoring approaches?",
    "short_version": "Let's discuss how we can improve the code."
}`

const (
	langRussian   = "ru"
	langUkrainian = "uk"
	langEnglish   = "en"
)

// detectLanguage classifies the message by character set: Ukrainian-specific
// letters win over general Cyrillic, everything else is treated as English.
func detectLanguage(text string) string {
	hasCyrillic := false

	for _, r := range text {
		switch {
		case strings.ContainsRune("іїєґІЇЄҐ", r):
			return langUkrainian
		case (r >= 'а' && r <= 'я') || (r >= 'А' && r <= 'Я') || r == 'ё' || r == 'Ё':
			hasCyrillic = true
		}
	}

	if hasCyrillic {
		return langRussian
	}

	return langEnglish
}

// promptFor appends a response-language pin to the base prompt so the model
// answers in the language the message was written in.
func promptFor(base, lang string) string {
	switch lang {
	case langRussian:
		return base + "\n\nIMPORTANT: Respond in Russian (на русском языке) as the input message is in Russian."
	case langUkrainian:
		return base + "\n\nIMPORTANT: Respond in Ukrainian (українською мовою) as the input message is in Ukrainian."
	default:
		return base
	}
}
