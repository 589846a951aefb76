// Package sqlite предоставляет платформенный слой для embedded SQLite:
// открытие соединения с настройками пула и PRAGMA, координацию записи
// с одним писателем на процесс, классификацию ошибок драйвера и
// применение миграций схемы.
//
// SQLite допускает только одну активную транзакцию записи. Writer
// сериализует записи процесса через мьютекс или опциональную очередь
// с одним потребителем, а конкуренцию с другими процессами (SQLITE_BUSY)
// обрабатывает повторами с экспоненциальной задержкой.
//
// Ошибки драйвера классифицируются на границе пакета: конкуренция за
// блокировку, нарушение ограничения схемы и прочие сбои. Вызывающий код
// работает с категориями из internal/shared и не зависит от текста ошибок.
package sqlite
