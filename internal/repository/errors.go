package repository

import "errors"

// Ошибки эксклюзивности, возвращаемые транзакционными операциями
// над бронированиями. Сервисный слой транслирует их в Conflict.
var (
	ErrSlotTaken            = errors.New("slot already has an active booking")
	ErrStudentAlreadyBooked = errors.New("student already has an active booking for this week")
	ErrNotFound             = errors.New("row not found")
)
