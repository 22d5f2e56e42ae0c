package utils

import (
	"os"
	"testing"
)

func TestRemoveFile(t *testing.T) {
	tempFile, err := os.CreateTemp(t.TempDir(), "import-list-*")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tempFile.Close()
	tempPath := tempFile.Name()

	err = RemoveFile(tempPath)
	if err != nil {
		t.Errorf("RemoveFile() error = %v", err)
	}

	_, err = os.Stat(tempPath)
	if !os.IsNotExist(err) {
		t.Errorf("File was not removed: %v", err)
	}

	err = RemoveFile(tempPath)
	if err != nil {
		t.Errorf("RemoveFile() on non-existent file error = %v", err)
	}

	err = RemoveFile("")
	if err != nil {
		t.Errorf("RemoveFile() with empty path error = %v", err)
	}
}
