package document

import (
	"errors"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
	".csv":  true,
	".xls":  true,
	".xlsx": true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain":               true,
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"image/png":                true,
	"image/jpeg":               true,
	"application/octet-stream": true,
}

var (
	ErrInvalidFilename    = errors.New("invalid filename")
	ErrInvalidFileType    = errors.New("file type not allowed")
	ErrInvalidContentType = errors.New("content type not allowed")
	ErrPathTraversal      = errors.New("path traversal detected")
	ErrEmptyContent       = errors.New("file content required")
	ErrFileTooLarge       = errors.New("file too large")
)

// ValidateFilename проверяет имя файла на безопасность
func ValidateFilename(filename string) error {
	if filename == "" || len(filename) > 255 || !utf8.ValidString(filename) {
		return ErrInvalidFilename
	}
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		return ErrPathTraversal
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || strings.TrimSuffix(filename, filepath.Ext(filename)) == "" {
		return ErrInvalidFilename
	}
	if !allowedExtensions[ext] {
		return ErrInvalidFileType
	}
	return nil
}

func ValidateContentType(contentType string) error {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedMimeTypes[mediaType] {
		return ErrInvalidContentType
	}
	return nil
}

// SanitizeFilename убирает разделители путей и управляющие символы.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	filename = strings.ReplaceAll(filename, "..", "")

	var builder strings.Builder
	for _, r := range filename {
		if r >= 32 && r != 127 {
			builder.WriteRune(r)
		}
	}
	return strings.TrimSpace(builder.String())
}

// EscapeFilename экранирует имя файла для Content-Disposition.
func EscapeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, `\`, `\\`)
	return strings.ReplaceAll(filename, `"`, `\"`)
}
