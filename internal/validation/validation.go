// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const (
	maxTitleLength    = 200
	maxProposalLength = 2000
	maxSkills         = 20
)

// ValidateTaskInput проверяет поля создаваемой задачи и возвращает текст
// первой нарушенной проверки, либо пустую строку.
func ValidateTaskInput(title, description string, credits int64, maxApplications int) string {
	if strings.TrimSpace(title) == "" {
		return "title is required"
	}
	if len(title) > maxTitleLength {
		return "title is too long"
	}
	if strings.TrimSpace(description) == "" {
		return "description is required"
	}
	if credits < 1 {
		return "credits must be at least 1"
	}
	if maxApplications < 1 {
		return "max applications must be at least 1"
	}
	return ""
}

// ValidateApplicationInput проверяет поля создаваемого отклика.
func ValidateApplicationInput(proposal string, proposedCredits int64) string {
	if strings.TrimSpace(proposal) == "" {
		return "proposal is required"
	}
	if len(proposal) > maxProposalLength {
		return "proposal is too long"
	}
	if proposedCredits < 1 {
		return "proposed credits must be at least 1"
	}
	return ""
}

// ValidateRating проверяет, что оценка лежит в диапазоне 1..5.
func ValidateRating(rating int) string {
	if rating < 1 || rating > 5 {
		return "rating must be between 1 and 5"
	}
	return ""
}

// ValidateSkills проверяет список навыков: без пустых элементов и дубликатов.
func ValidateSkills(skills []string) string {
	if len(skills) > maxSkills {
		return "too many skills"
	}
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" {
			return "skill must not be empty"
		}
		if seen[key] {
			return "duplicate skill: " + s
		}
		seen[key] = true
	}
	return ""
}
