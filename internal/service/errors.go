package service

import "errors"

// Пять ожидаемых бизнес-исходов. Все восстановимы на стороне клиента
// и транслируются API-слоем в 4xx; ни один не означает баг.
var (
	// ErrNotFound сущность отсутствует либо вне видимости арендатора/вызывающего.
	// Эти случаи намеренно неразличимы, чтобы не раскрывать чужие ID.
	ErrNotFound = errors.New("not found")

	// ErrForbidden у вызывающего нет прав на объект (не его семья)
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState операция неприменима к текущему состоянию урока или брони
	ErrInvalidState = errors.New("invalid state")

	// ErrNoticeViolation нарушено правило 24 часов до начала слота
	ErrNoticeViolation = errors.New("notice period violation")

	// ErrConflict слот занят либо у ученика уже есть бронь на эту неделю
	ErrConflict = errors.New("booking conflict")
)
