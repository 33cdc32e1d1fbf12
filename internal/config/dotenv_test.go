package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// chdir is a stand-in for t.Chdir, which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir to %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})
}

func writeEnvFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func TestLoadDotEnv_PriorityOrder(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, ".env", "STAYHUB_TEST_SHARED=base\nSTAYHUB_TEST_BASE_ONLY=base\n")
	writeEnvFile(t, dir, ".env.local", "STAYHUB_TEST_SHARED=local\n")
	writeEnvFile(t, dir, ".env.development", "STAYHUB_TEST_SHARED=dev\n")
	chdir(t, dir)

	os.Unsetenv("STAYHUB_TEST_SHARED")
	os.Unsetenv("STAYHUB_TEST_BASE_ONLY")
	defer os.Unsetenv("STAYHUB_TEST_SHARED")
	defer os.Unsetenv("STAYHUB_TEST_BASE_ONLY")

	loaded := LoadDotEnv("development")

	assert.Equal(t, []string{".env.development", ".env.local", ".env"}, loaded)
	// The most specific file wins; less specific files still contribute
	// variables the specific one doesn't set.
	assert.Equal(t, "dev", os.Getenv("STAYHUB_TEST_SHARED"))
	assert.Equal(t, "base", os.Getenv("STAYHUB_TEST_BASE_ONLY"))
}

func TestLoadDotEnv_OSEnvWins(t *testing.T) {
	dir := t.TempDir()
	writeEnvFile(t, dir, ".env", "STAYHUB_TEST_OS_WINS=file\n")
	chdir(t, dir)

	t.Setenv("STAYHUB_TEST_OS_WINS", "os")

	loaded := LoadDotEnv("")

	assert.Equal(t, []string{".env"}, loaded)
	assert.Equal(t, "os", os.Getenv("STAYHUB_TEST_OS_WINS"))
}

func TestLoadDotEnv_NoFiles(t *testing.T) {
	chdir(t, t.TempDir())
	assert.Empty(t, LoadDotEnv("production"))
}
