// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// CodeLength — фиксированная длина кода участника.
const CodeLength = 6

// IsValidCheckinCode проверяет формат кода участника: ровно шесть цифр.
// Частичный или произвольный ввод никогда не считается корректным.
func IsValidCheckinCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}

	for i := 0; i < len(code); i++ {
		ch := rune(code[i])
		if !unicode.IsDigit(ch) {
			return false
		}
	}

	return true
}
