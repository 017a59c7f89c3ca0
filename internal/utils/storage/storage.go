package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Foodgram-Backend/internal/utils"
)

// Storage persists decoded image payloads and returns a public link.
// Recipes keep only the link; the bytes live on disk or in S3.
type Storage interface {
	Save(fileName string, data []byte, contentType string) (string, error)
	Delete(link string) error
}

// New picks the backend from STORAGE_DRIVER ("s3" or "local").
func New() Storage {
	if utils.GetConfig("STORAGE_DRIVER") == "s3" {
		return NewAwsS3()
	}
	return NewLocalStorage(LocalDir(), utils.GetConfig("APP_URL"))
}

// LocalDir is where the "local" driver keeps uploads. The app serves this
// directory under /media so the saved links resolve.
func LocalDir() string {
	if dir := utils.GetConfig("UPLOAD_DIR"); dir != "" {
		return dir
	}
	return "./uploads"
}

type localStorage struct {
	dir    string
	appURL string
}

func NewLocalStorage(dir, appURL string) Storage {
	if dir == "" {
		dir = LocalDir()
	}
	return &localStorage{dir: dir, appURL: appURL}
}

func (l *localStorage) Save(fileName string, data []byte, contentType string) (string, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileName)
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/media/%s", strings.TrimSuffix(l.appURL, "/"), name), nil
}

func (l *localStorage) Delete(link string) error {
	idx := strings.LastIndex(link, "/media/")
	if idx < 0 {
		return nil
	}
	return os.Remove(filepath.Join(l.dir, link[idx+len("/media/"):]))
}
