package sqlite

import (
	"errors"
	"strings"

	sqlite3 "modernc.org/sqlite"
)

// Class - категория ошибки SQLite, определяемая на границе адаптера хранилища.
// Вызывающий код принимает решения по категории, а не по тексту ошибки.
type Class int

const (
	// ClassOther - любая ошибка, не попадающая в известные категории
	ClassOther Class = iota
	// ClassBusy - конкуренция за блокировку базы (SQLITE_BUSY / SQLITE_LOCKED),
	// операция имеет смысл для повтора
	ClassBusy
	// ClassConstraint - нарушение ограничения схемы (UNIQUE, FOREIGN KEY, NOT NULL),
	// повтор бессмысленен
	ClassConstraint
)

// Коды результата SQLite (primary result codes)
const (
	codeBusy       = 5  // SQLITE_BUSY
	codeLocked     = 6  // SQLITE_LOCKED
	codeConstraint = 19 // SQLITE_CONSTRAINT
)

// Classify определяет категорию ошибки SQLite.
// Сначала проверяется типизированная ошибка драйвера по коду результата,
// текстовое сопоставление остается как резервный вариант.
func Classify(err error) Class {
	if err == nil {
		return ClassOther
	}

	var liteErr *sqlite3.Error
	if errors.As(err, &liteErr) {
		// Расширенные коды содержат первичный код в младшем байте
		// (например SQLITE_CONSTRAINT_UNIQUE = 2067 -> 19)
		switch liteErr.Code() & 0xff {
		case codeBusy, codeLocked:
			return ClassBusy
		case codeConstraint:
			return ClassConstraint
		}
		return ClassOther
	}

	// Резервная классификация по тексту для ошибок без типизированного кода
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "database table is locked"),
		strings.Contains(msg, "sqlite_busy"):
		return ClassBusy
	case strings.Contains(msg, "constraint failed"),
		strings.Contains(msg, "constraint violation"):
		return ClassConstraint
	}

	return ClassOther
}

// IsBusy сообщает, вызвана ли ошибка конкуренцией за блокировку базы.
func IsBusy(err error) bool {
	return err != nil && Classify(err) == ClassBusy
}

// IsConstraint сообщает, является ли ошибка нарушением ограничения схемы.
func IsConstraint(err error) bool {
	return err != nil && Classify(err) == ClassConstraint
}
