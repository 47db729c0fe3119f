package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

var (
	// ErrFileTooLarge возвращается, когда файл превышает лимит загрузки.
	ErrFileTooLarge = errors.New("file exceeds upload limit")
	// ErrUnsupportedType возвращается, когда сигнатура файла не входит
	// в список допустимых типов доказательств.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Допустимые типы доказательств: изображения и PDF. Тип определяется по
// сигнатуре содержимого, а не по расширению или заголовку запроса.
var allowedEvidenceTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"application/pdf": {},
}

// EvidenceStorage — файловое хранилище доказательств по спорам.
type EvidenceStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewEvidenceStorage создаёт хранилище в каталоге rootPath.
func NewEvidenceStorage(rootPath string, maxUploadMB int64) (*EvidenceStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}
	return &EvidenceStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save проверяет размер и сигнатуру файла, сохраняет его атомарно
// (запись во временный файл и переименование) и возвращает относительный
// путь вместе с определённым MIME-типом.
func (s *EvidenceStorage) Save(disputeID uuid.UUID, fileName string, data []byte) (string, string, error) {
	if int64(len(data)) > s.maxUploadBytes {
		return "", "", ErrFileTooLarge
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", "", fmt.Errorf("storage: не удалось определить тип файла: %w", err)
	}
	if kind == types.Unknown {
		return "", "", ErrUnsupportedType
	}
	if _, ok := allowedEvidenceTypes[kind.MIME.Value]; !ok {
		return "", "", ErrUnsupportedType
	}

	disputeDir := filepath.Join(s.rootPath, disputeID.String())
	if err := os.MkdirAll(disputeDir, 0o755); err != nil {
		return "", "", fmt.Errorf("storage: не удалось создать каталог спора: %w", err)
	}

	safeName := sanitizeFilename(fileName)
	storedName := fmt.Sprintf("%d_%s.%s", time.Now().UnixNano(), strings.TrimSuffix(safeName, filepath.Ext(safeName)), kind.Extension)
	targetPath := filepath.Join(disputeDir, storedName)
	tempPath := targetPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}
	if err := os.Rename(tempPath, targetPath); err != nil {
		_ = os.Remove(tempPath)
		return "", "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return filepath.Join(disputeID.String(), storedName), kind.MIME.Value, nil
}

// Open возвращает абсолютный путь к сохранённому файлу.
func (s *EvidenceStorage) Open(relativePath string) (string, error) {
	cleaned := filepath.Clean(relativePath)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: недопустимый путь %q", relativePath)
	}
	full := filepath.Join(s.rootPath, cleaned)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("storage: файл недоступен: %w", err)
	}
	return full, nil
}

// sanitizeFilename удаляет потенциально опасные символы из имени файла.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "evidence"
	}
	return name
}
