// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrRejectedExtension — расширение файла в списке запрещённых.
	ErrRejectedExtension = errors.New("расширение файла запрещено")
	// ErrStorage — ошибка хранилища при записи содержимого.
	ErrStorage = errors.New("ошибка хранилища")
	// ErrNotFound — файл или ссылка не найдены.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrExpired — срок действия ссылки истёк.
	ErrExpired = errors.New("срок действия ссылки истёк")
	// ErrForbidden — операция доступна только владельцу файла.
	ErrForbidden = errors.New("доступ запрещён")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrFileTooLarge — размер файла превышает допустимый.
	ErrFileTooLarge = errors.New("размер файла превышает допустимый")
)
