package service

import (
	"math"
	"strings"
	"time"

	"github.com/mmeshcher/timeslice/internal/model"
)

// Веса компонент скоринга соответствия отклика задаче.
const (
	weightSkills     = 0.4
	weightExperience = 0.2
	weightRating     = 0.2
	weightResponse   = 0.1
	weightProposal   = 0.1
)

// MatchScore считает детерминированный скоринг соответствия кандидата задаче
// в диапазоне [0,100]: совпадение навыков, опыт, рейтинг, скорость отклика
// и проработанность предложения. Значение фиксируется при подаче отклика.
func MatchScore(t *model.Task, applicant *model.User, proposal string) int {
	score := weightSkills*skillsScore(t.SkillsRequired, applicant.Skills) +
		weightExperience*experienceScore(applicant.CompletedTasks) +
		weightRating*ratingScore(applicant.Rating, applicant.TotalRatings) +
		weightResponse*responseTimeScore(time.Since(t.CreatedAt)) +
		weightProposal*proposalScore(proposal)

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

// skillsScore — доля требуемых навыков, которыми владеет кандидат.
// Задача без требований к навыкам подходит любому.
func skillsScore(required, owned []string) float64 {
	if len(required) == 0 {
		return 100
	}

	have := make(map[string]bool, len(owned))
	for _, s := range owned {
		have[strings.ToLower(strings.TrimSpace(s))] = true
	}

	matched := 0
	for _, s := range required {
		if have[strings.ToLower(strings.TrimSpace(s))] {
			matched++
		}
	}
	return float64(matched) / float64(len(required)) * 100
}

func experienceScore(completedTasks int) float64 {
	return math.Min(float64(completedTasks)*10, 100)
}

// ratingScore переводит рейтинг 0..5 в шкалу 0..100; пользователь без оценок
// получает нейтральные 50.
func ratingScore(rating float64, totalRatings int) float64 {
	if totalRatings == 0 {
		return 50
	}
	return rating / 5 * 100
}

// responseTimeScore поощряет быстрые отклики на свежие задачи.
func responseTimeScore(sincePosted time.Duration) float64 {
	switch {
	case sincePosted < time.Hour:
		return 100
	case sincePosted < 6*time.Hour:
		return 80
	case sincePosted < 24*time.Hour:
		return 60
	case sincePosted < 72*time.Hour:
		return 40
	default:
		return 20
	}
}

// proposalScore оценивает проработанность текста предложения по его длине.
func proposalScore(proposal string) float64 {
	n := len(strings.TrimSpace(proposal))
	switch {
	case n >= 300:
		return 100
	case n >= 150:
		return 80
	case n >= 50:
		return 60
	case n > 0:
		return 40
	default:
		return 0
	}
}
