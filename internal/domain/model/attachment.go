package model

import "time"

// Виды загружаемых файлов.
const (
	// KindAttachment — вложение корреспонденции (дедуплицируется).
	KindAttachment = "attachment"
	// KindSignature — изображение подписи.
	KindSignature = "signature"
	// KindPDF — сгенерированный PDF-документ.
	KindPDF = "pdf"
)

// Attachment — запись загруженного файла.
// Хранится в таблице attachments. Записи append-only: содержимое
// и метаданные существующего вложения никогда не изменяются.
type Attachment struct {
	// ID — UUID вложения
	ID string
	// FileName — оригинальное имя файла (только метаданные,
	// на диске не используется)
	FileName string
	// ContentHash — SHA-256 содержимого; для kind=attachment служит
	// ключом дедупликации
	ContentHash string
	// SizeBytes — размер файла в байтах
	SizeBytes int64
	// MimeType — MIME-тип файла
	MimeType string
	// Kind — вид файла (attachment, signature, pdf)
	Kind string
	// StoragePath — относительный путь на диске (category/storage-name)
	StoragePath string
	// UploadedBy — идентификатор загрузившего пользователя
	UploadedBy int64
	// UploadedAt — время загрузки
	UploadedAt time.Time
}

// URL возвращает публичный относительный URL вложения:
// /uploads/<category>/<storage-name>.
func (a *Attachment) URL() string {
	return "/uploads/" + a.StoragePath
}
