// upload.go — загрузка файлов: проверка расширений, ограничение размера,
// контентная дедупликация вложений по SHA-256.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mbins999/instant-gov-mail/internal/domain/model"
	"github.com/mbins999/instant-gov-mail/internal/repository"
	"github.com/mbins999/instant-gov-mail/internal/storage/filestore"
)

// Prometheus-метрики загрузок.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "igm_uploads_total",
		Help: "Общее количество загрузок файлов по видам и результатам.",
	}, []string{"kind", "result"})
	uploadDedupTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "igm_upload_dedup_total",
		Help: "Количество загрузок, схлопнутых дедупликацией по содержимому.",
	})
)

// allowedExtensions — допустимые расширения по видам файлов.
var allowedExtensions = map[string]map[string]bool{
	model.KindAttachment: {
		"pdf": true, "doc": true, "docx": true, "xls": true, "xlsx": true,
		"jpg": true, "jpeg": true, "png": true, "txt": true,
	},
	model.KindSignature: {
		"jpg": true, "jpeg": true, "png": true, "svg": true,
	},
	model.KindPDF: {
		"pdf": true,
	},
}

// kindCategories — соответствие вида файла категории хранения на диске.
var kindCategories = map[string]string{
	model.KindAttachment: filestore.CategoryAttachments,
	model.KindSignature:  filestore.CategorySignatures,
	model.KindPDF:        filestore.CategoryPDFs,
}

// UploadResult — результат загрузки файла.
type UploadResult struct {
	// Attachment — запись вложения (новая или существующая при дедупликации)
	Attachment *model.Attachment
	// Deduplicated — true, если содержимое уже было загружено ранее
	// и возвращена существующая запись
	Deduplicated bool
}

// UploadService — приём загружаемых файлов.
//
// Вложения (kind=attachment) дедуплицируются по SHA-256 содержимого:
// повторная загрузка тех же байт возвращает существующую запись.
// Подписи и PDF не дедуплицируются.
type UploadService struct {
	attachments repository.AttachmentRepository
	files       *filestore.FileStore
	maxFileSize int64
	logger      *slog.Logger
}

// NewUploadService создаёт сервис загрузки файлов.
func NewUploadService(
	attachments repository.AttachmentRepository,
	files *filestore.FileStore,
	maxFileSize int64,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		attachments: attachments,
		files:       files,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "upload")),
	}
}

// MaxFileSize возвращает действующий лимит размера загружаемого файла.
func (s *UploadService) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload принимает файл указанного вида от аутентифицированного пользователя.
//
// Порядок: проверка расширения → streaming-запись на диск с подсчётом
// SHA-256 и ограничением размера → для вложений транзакционная вставка
// с дедупликацией (InsertOrGet). Если те же байты уже загружены,
// свежезаписанный файл удаляется и возвращается запись победителя.
func (s *UploadService) Upload(ctx context.Context, reader io.Reader, fileName, kind string, identity *model.Identity) (*UploadResult, error) {
	if identity == nil {
		return nil, ErrUnauthenticated
	}

	category, ok := kindCategories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: неизвестный вид файла %q", ErrValidation, kind)
	}

	if err := checkExtension(fileName, kind); err != nil {
		uploadsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, err
	}

	// Лимит maxFileSize+1: лишний байт отличает «ровно лимит» от «больше лимита»,
	// при этом превышение никогда не пишется на диск целиком.
	limited := io.LimitReader(reader, s.maxFileSize+1)
	saved, err := s.files.SaveFile(limited, category, fileName)
	if err != nil {
		uploadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("ошибка сохранения файла: %w", err)
	}
	if saved.Size > s.maxFileSize {
		s.removeFile(saved.StoragePath)
		uploadsTotal.WithLabelValues(kind, "rejected").Inc()
		return nil, fmt.Errorf("%w: лимит %d байт", ErrFileTooLarge, s.maxFileSize)
	}

	a := &model.Attachment{
		ID:          uuid.New().String(),
		FileName:    fileName,
		ContentHash: saved.Checksum,
		SizeBytes:   saved.Size,
		MimeType:    mimeTypeForExt(fileName),
		Kind:        kind,
		StoragePath: filepath.ToSlash(saved.StoragePath),
		UploadedBy:  identity.UserID,
		UploadedAt:  time.Now().UTC(),
	}

	// Вложения дедуплицируются по содержимому: вставка и чтение
	// победителя идут одной транзакцией, гонка check-then-insert
	// разрешается в базе.
	if kind == model.KindAttachment {
		stored, deduplicated, err := s.attachments.InsertOrGet(ctx, a)
		if err != nil {
			s.removeFile(saved.StoragePath)
			uploadsTotal.WithLabelValues(kind, "error").Inc()
			return nil, fmt.Errorf("ошибка сохранения записи вложения: %w", err)
		}
		if deduplicated {
			s.removeFile(saved.StoragePath)
			uploadDedupTotal.Inc()
			uploadsTotal.WithLabelValues(kind, "dedup").Inc()
			s.logger.Info("Загрузка схлопнута дедупликацией",
				slog.String("content_hash", saved.Checksum),
				slog.String("attachment_id", stored.ID))
			return &UploadResult{Attachment: stored, Deduplicated: true}, nil
		}
	} else if err := s.attachments.Insert(ctx, a); err != nil {
		s.removeFile(saved.StoragePath)
		uploadsTotal.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("ошибка сохранения записи вложения: %w", err)
	}

	uploadsTotal.WithLabelValues(kind, "ok").Inc()
	s.logger.Info("Загружен файл",
		slog.String("attachment_id", a.ID),
		slog.String("kind", kind),
		slog.Int64("size_bytes", a.SizeBytes),
		slog.Int64("uploaded_by", identity.UserID))

	return &UploadResult{Attachment: a}, nil
}

// Open открывает сохранённый файл для отдачи клиенту.
// storagePath — относительный путь вида category/storage-name.
func (s *UploadService) Open(storagePath string) (io.ReadCloser, error) {
	f, err := s.files.ReadFile(storagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
	}
	return f, nil
}

// removeFile удаляет файл с диска, логируя неуспех: оставшийся на диске
// блоб без записи в БД безвреден, но попадает в лог для ручной очистки.
func (s *UploadService) removeFile(storagePath string) {
	if err := s.files.DeleteFile(storagePath); err != nil {
		s.logger.Warn("Не удалось удалить файл после отказа загрузки",
			slog.String("storage_path", storagePath),
			slog.String("error", err.Error()))
	}
}

// checkExtension проверяет расширение файла против списка для вида.
func checkExtension(fileName, kind string) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	if ext == "" || !allowedExtensions[kind][ext] {
		return fmt.Errorf("%w: расширение %q не допускается для вида %q", ErrUnsupportedType, ext, kind)
	}
	return nil
}

// mimeTypeForExt возвращает MIME-тип по расширению файла.
func mimeTypeForExt(fileName string) string {
	switch strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".") {
	case "pdf":
		return "application/pdf"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "xls":
		return "application/vnd.ms-excel"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "svg":
		return "image/svg+xml"
	case "txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
