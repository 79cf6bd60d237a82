package model

import "time"

// Типы отображения корреспонденции.
const (
	// DisplayTypeContent — отображение текста письма.
	DisplayTypeContent = "content"
	// DisplayTypeAttachmentOnly — отображение только вложений.
	DisplayTypeAttachmentOnly = "attachment_only"
)

// Статусы корреспонденции.
const (
	// StatusDraft — черновик (статус по умолчанию).
	StatusDraft = "draft"
	// StatusSent — отправлено во внешнюю систему; запись блокируется.
	StatusSent = "sent"
)

// ValidDisplayType проверяет, является ли значение допустимым display_type.
func ValidDisplayType(dt string) bool {
	return dt == DisplayTypeContent || dt == DisplayTypeAttachmentOnly
}

// Correspondence — запись корреспонденции (официального письма).
// Хранится в таблице correspondences.
//
// Запись считается заблокированной (locked), если archived == true
// или status == "sent". После блокировки display_type изменять нельзя.
type Correspondence struct {
	// ID — UUID записи
	ID string
	// Number — регистрационный номер письма
	Number string
	// Type — тип корреспонденции (incoming, outgoing и т.д.)
	Type string
	// Subject — тема письма
	Subject string
	// Content — текст письма
	Content string
	// FromEntity — отправитель (организационная единица)
	FromEntity string
	// ReceivedByEntity — получатель (организационная единица)
	ReceivedByEntity string
	// Date — дата письма; задаётся при создании и не изменяется
	// (участвует в физическом порядке хранения)
	Date time.Time
	// Greeting — приветствие
	Greeting string
	// ResponsiblePerson — ответственное лицо
	ResponsiblePerson string
	// SignatureURL — URL изображения подписи
	SignatureURL string
	// DisplayType — режим отображения (content, attachment_only)
	DisplayType string
	// Attachments — упорядоченный список идентификаторов вложений.
	// Для движка жизненного цикла это opaque-строки.
	Attachments []string
	// Notes — примечания (опционально)
	Notes *string
	// ReceivedBy — идентификатор принявшего пользователя (опционально)
	ReceivedBy *int64
	// ReceivedAt — время приёма (опционально)
	ReceivedAt *time.Time
	// CreatedBy — идентификатор создавшего пользователя (опционально)
	CreatedBy *int64
	// CreatedAt — время создания записи; не изменяется
	CreatedAt time.Time
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
	// Archived — признак архивации; после установки запись блокируется
	Archived bool
	// Status — статус (draft, sent, свободный текст для архивных)
	Status string
	// PDFURL — URL сгенерированного PDF (опционально)
	PDFURL *string
	// ExternalDocID — идентификатор документа во внешней системе (опционально)
	ExternalDocID *string
	// ExternalConnectionID — идентификатор внешнего подключения (опционально)
	ExternalConnectionID *string
	// Version — счётчик версий для optimistic concurrency control
	Version int64
}

// Locked проверяет, заблокирована ли запись.
func (c *Correspondence) Locked() bool {
	return c.Archived || c.Status == StatusSent
}

// CorrespondencePatch — частичное обновление корреспонденции.
// Для обязательных полей nil-указатель означает «не изменять»,
// non-nil — новое значение. Nullable-поля описаны через Optional:
// им нужно третье состояние «очистить» (явный null в запросе).
// Поля Date, CreatedAt, CreatedBy отсутствуют намеренно: они
// неизменяемы после создания.
type CorrespondencePatch struct {
	Number               *string
	Type                 *string
	Subject              *string
	Content              *string
	FromEntity           *string
	ReceivedByEntity     *string
	Greeting             *string
	ResponsiblePerson    *string
	SignatureURL         *string
	DisplayType          *string
	Attachments          *[]string
	Notes                Optional[string]
	ReceivedBy           Optional[int64]
	ReceivedAt           Optional[time.Time]
	Archived             *bool
	Status               *string
	PDFURL               Optional[string]
	ExternalDocID        Optional[string]
	ExternalConnectionID Optional[string]
}

// WillLock проверяет, переводит ли patch запись в заблокированное состояние.
func (p *CorrespondencePatch) WillLock() bool {
	if p.Archived != nil && *p.Archived {
		return true
	}
	if p.Status != nil && *p.Status == StatusSent {
		return true
	}
	return false
}
