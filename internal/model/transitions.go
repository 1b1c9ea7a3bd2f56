package model

// ValidTaskTransition проверяет допустимость перехода статуса задачи.
// Статусы движутся только вперёд: open → {in-review|assigned} → in-progress → completed;
// cancelled достижим из любого незавершённого статуса.
func ValidTaskTransition(from, to TaskStatus) bool {
	if to == TaskStatusCancelled {
		return from != TaskStatusCompleted && from != TaskStatusCancelled
	}

	switch from {
	case TaskStatusOpen:
		return to == TaskStatusInReview || to == TaskStatusAssigned
	case TaskStatusInReview:
		return to == TaskStatusAssigned
	case TaskStatusAssigned:
		return to == TaskStatusInProgress || to == TaskStatusOpen
	case TaskStatusInProgress:
		return to == TaskStatusCompleted
	}
	return false
}

// ValidApplicationTransition проверяет допустимость перехода статуса отклика.
// Терминальные статусы не меняются; interviewed может перейти только в accepted/rejected.
func ValidApplicationTransition(from, to ApplicationStatus) bool {
	switch from {
	case ApplicationStatusPending:
		return to == ApplicationStatusAccepted ||
			to == ApplicationStatusRejected ||
			to == ApplicationStatusWithdrawn ||
			to == ApplicationStatusInterviewed
	case ApplicationStatusInterviewed:
		return to == ApplicationStatusAccepted || to == ApplicationStatusRejected
	}
	return false
}

// ApplicationStatusTerminal сообщает, является ли статус отклика терминальным.
func ApplicationStatusTerminal(s ApplicationStatus) bool {
	return s == ApplicationStatusAccepted ||
		s == ApplicationStatusRejected ||
		s == ApplicationStatusWithdrawn
}

// ValidBookingTransition проверяет допустимость перехода статуса бронирования
// без учёта роли инициатора. Переход в disputed и выход из него обрабатываются
// отдельными операциями спора.
func ValidBookingTransition(from, to BookingStatus) bool {
	switch from {
	case BookingStatusConfirmed:
		return to == BookingStatusInProgress || to == BookingStatusCancelled
	case BookingStatusInProgress:
		return to == BookingStatusWorkSubmitted || to == BookingStatusCancelled
	case BookingStatusWorkSubmitted:
		// возврат на доработку или приёмка
		return to == BookingStatusCompleted || to == BookingStatusInProgress
	}
	return false
}

// BookingTransitionAllowed проверяет, что переход статуса бронирования разрешён
// указанной роли. Старт работы и сдача результата принадлежат исполнителю,
// приёмка и возврат на доработку — заказчику, отмена доступна обеим сторонам.
func BookingTransitionAllowed(from, to BookingStatus, role ReviewerRole) bool {
	if !ValidBookingTransition(from, to) {
		return false
	}

	switch {
	case from == BookingStatusConfirmed && to == BookingStatusInProgress:
		return role == RoleHelper
	case from == BookingStatusInProgress && to == BookingStatusWorkSubmitted:
		return role == RoleHelper
	case from == BookingStatusWorkSubmitted && to == BookingStatusCompleted:
		return role == RoleProvider
	case from == BookingStatusWorkSubmitted && to == BookingStatusInProgress:
		return role == RoleProvider
	case to == BookingStatusCancelled:
		return true
	}
	return false
}

// BookingStatusTerminal сообщает, является ли статус бронирования терминальным.
func BookingStatusTerminal(s BookingStatus) bool {
	return s == BookingStatusCompleted ||
		s == BookingStatusCancelled ||
		s == BookingStatusRefunded
}

// NextRating считает новый средний рейтинг по формуле скользящего среднего:
// (oldAvg*oldCount + newRating) / (oldCount + 1).
func NextRating(oldAvg float64, oldCount int, newRating int) float64 {
	return (oldAvg*float64(oldCount) + float64(newRating)) / float64(oldCount+1)
}
