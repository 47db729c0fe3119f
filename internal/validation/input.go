package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength    = 3
	MaxUsernameLength    = 30
	MinTitleLength       = 3
	MaxTitleLength       = 200
	MinDescriptionLength = 1
	MaxDescriptionLength = 5000
	MinReasonLength      = 10
	MaxReasonLength      = 2000
	MaxCommentLength     = 2000
	MinAmount            = 0.01
	MaxAmount            = 100000000.0 // 100 миллионов
	MinRating            = 1
	MaxRating            = 5
)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("некорректный формат email")
	}
	if !strings.Contains(parts[1], ".") {
		return fmt.Errorf("некорректный домен email")
	}

	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}
	for _, r := range username {
		if !isUsernameRune(r) {
			return fmt.Errorf("имя пользователя может содержать только латинские буквы, цифры, точку, дефис и подчёркивание")
		}
	}
	return nil
}

func isUsernameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '-', r == '_':
		return true
	}
	return false
}

// ValidateAmount проверяет денежную сумму.
func ValidateAmount(amount float64) error {
	if amount < MinAmount {
		return fmt.Errorf("сумма должна быть положительной")
	}
	if amount > MaxAmount {
		return fmt.Errorf("сумма превышает допустимый максимум")
	}
	return nil
}

// ValidateRating проверяет оценку отзыва.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("рейтинг должен быть от %d до %d", MinRating, MaxRating)
	}
	return nil
}
