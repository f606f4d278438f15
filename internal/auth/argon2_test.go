package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if err := verifyPassword("correct horse battery staple", hash); err != nil {
		t.Fatalf("verifyPassword with correct password: %v", err)
	}

	err = verifyPassword("wrong password", hash)
	if !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestHashPasswordProducesDistinctSalts(t *testing.T) {
	h1, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected distinct salts to produce distinct hash strings")
	}
}

func TestFileIdentityManagerAuthenticate(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "passwords")
	content := "alice:" + hash + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	mgr, err := NewFileIdentityManager(path)
	if err != nil {
		t.Fatalf("NewFileIdentityManager: %v", err)
	}

	if err := mgr.Authenticate("alice", "hunter2"); err != nil {
		t.Fatalf("Authenticate with correct password: %v", err)
	}

	if err := mgr.Authenticate("alice", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if err := mgr.Authenticate("bob", "anything"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFileIdentityManagerMalformedEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwords")
	if err := os.WriteFile(path, []byte("not-a-valid-line\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := NewFileIdentityManager(path); err == nil {
		t.Fatal("expected error for malformed password file entry")
	}
}
