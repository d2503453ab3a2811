// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrProvider — snapshot не получен, тик прерван без записей.
	ErrProvider = errors.New("провайдер snapshot недоступен")
	// ErrPersistence — ошибка чтения или записи в хранилище событий.
	ErrPersistence = errors.New("ошибка хранилища событий")
	// ErrTickInProgress — предыдущий тик ещё выполняется, текущий пропущен.
	ErrTickInProgress = errors.New("тик уже выполняется")
	// ErrNotFound — endpoint не найден.
	ErrNotFound = errors.New("endpoint не найден")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)
