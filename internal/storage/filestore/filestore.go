// Пакет filestore — операции с физическими файлами на диске.
// Файлы раскладываются по категориям (attachments, signatures, pdfs),
// запись — streaming с подсчётом SHA-256 на лету.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Категории хранения — поддиректории uploadDir.
const (
	CategoryAttachments = "attachments"
	CategorySignatures  = "signatures"
	CategoryPDFs        = "pdfs"
)

// categories — все поддиректории, создаваемые при старте.
var categories = []string{CategoryAttachments, CategorySignatures, CategoryPDFs}

// ValidCategory проверяет, является ли строка известной категорией.
func ValidCategory(c string) bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// FileStore — управление физическими файлами на диске.
type FileStore struct {
	// uploadDir — корневая директория хранения файлов (IGM_UPLOAD_DIR)
	uploadDir string
}

// SaveResult — результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath — относительный путь файла: category/storage-name
	StoragePath string
	// FullPath — абсолютный путь файла на диске
	FullPath string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 хэш содержимого файла
	Checksum string
}

// New создаёт FileStore и директории категорий, если их нет.
func New(uploadDir string) (*FileStore, error) {
	for _, cat := range categories {
		dir := filepath.Join(uploadDir, cat)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	return &FileStore{uploadDir: uploadDir}, nil
}

// SaveFile записывает данные из reader на диск с подсчётом SHA-256 на лету.
// Имя файла на диске — UUID с расширением оригинала; само оригинальное
// имя хранится только в метаданных.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке temp файл удаляется.
func (fs *FileStore) SaveFile(reader io.Reader, category, originalFilename string) (*SaveResult, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("неизвестная категория хранения: %s", category)
	}

	storageName := generateStorageName(originalFilename)
	storagePath := filepath.Join(category, storageName)
	fullPath := filepath.Join(fs.uploadDir, storagePath)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	// Streaming запись с одновременным подсчётом SHA-256
	hasher := sha256.New()
	tee := io.TeeReader(reader, hasher)

	size, err := io.Copy(f, tee)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	// fsync для гарантии записи на диск
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	// Атомарный rename
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: storagePath,
		FullPath:    fullPath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// ReadFile открывает файл для чтения.
// storagePath — относительный путь вида category/storage-name.
// Вызывающий код обязан закрыть файл.
func (fs *FileStore) ReadFile(storagePath string) (*os.File, error) {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("файл не найден: %s", storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}

	return f, nil
}

// DeleteFile удаляет файл с диска.
// Возвращает nil если файл уже не существует.
func (fs *FileStore) DeleteFile(storagePath string) error {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func (fs *FileStore) FileExists(storagePath string) bool {
	fullPath, err := fs.resolve(storagePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// UploadDir возвращает путь к корневой директории хранения.
func (fs *FileStore) UploadDir() string {
	return fs.uploadDir
}

// resolve превращает относительный storagePath в абсолютный путь,
// отклоняя попытки выхода за пределы uploadDir (path traversal).
func (fs *FileStore) resolve(storagePath string) (string, error) {
	clean := filepath.Clean(storagePath)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("недопустимый путь файла: %s", storagePath)
	}
	return filepath.Join(fs.uploadDir, clean), nil
}

// generateStorageName генерирует имя файла для хранения на диске:
// UUID + расширение оригинала в нижнем регистре.
func generateStorageName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	return uuid.New().String() + ext
}
