package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptData(t *testing.T) {
	config := DefaultEncryptionConfig("correct horse battery staple")
	plaintext := []byte(`{"format_version": 1, "trained_classifier": true}`)

	encrypted, err := EncryptData(plaintext, config)
	if err != nil {
		t.Fatalf("EncryptData() error = %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Error("encrypted output contains the plaintext")
	}

	decrypted, err := DecryptData(encrypted, config)
	if err != nil {
		t.Fatalf("DecryptData() error = %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip = %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptDataWrongPassword(t *testing.T) {
	encrypted, err := EncryptData([]byte("secret"), DefaultEncryptionConfig("right"))
	if err != nil {
		t.Fatalf("EncryptData() error = %v", err)
	}

	if _, err := DecryptData(encrypted, DefaultEncryptionConfig("wrong")); err == nil {
		t.Error("DecryptData() with wrong password = nil error")
	}
}

func TestEncryptDataRequiresPassword(t *testing.T) {
	if _, err := EncryptData([]byte("x"), nil); err == nil {
		t.Error("EncryptData(nil config) = nil error")
	}
	if _, err := EncryptData([]byte("x"), &EncryptionConfig{}); err == nil {
		t.Error("EncryptData(empty password) = nil error")
	}
}

func TestDecryptDataRejectsShortInput(t *testing.T) {
	if _, err := DecryptData([]byte("too short"), DefaultEncryptionConfig("pw")); err == nil {
		t.Error("DecryptData(short input) = nil error")
	}
}

func TestEncryptDecryptFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "model.json")
	sealed := filepath.Join(dir, "model.json.enc")
	restored := filepath.Join(dir, "model.restored.json")

	content := []byte(`{"config": {"vocab_size": 50}}`)
	if err := os.WriteFile(source, content, 0o644); err != nil {
		t.Fatal(err)
	}

	config := DefaultEncryptionConfig("pw")
	if err := EncryptFile(source, sealed, config); err != nil {
		t.Fatalf("EncryptFile() error = %v", err)
	}

	isEnc, err := IsEncrypted(sealed)
	if err != nil {
		t.Fatalf("IsEncrypted() error = %v", err)
	}
	if !isEnc {
		t.Error("IsEncrypted() = false for encrypted file")
	}

	isEnc, err = IsEncrypted(source)
	if err != nil {
		t.Fatalf("IsEncrypted() error = %v", err)
	}
	if isEnc {
		t.Error("IsEncrypted() = true for plaintext file")
	}

	if err := DecryptFile(sealed, restored, config); err != nil {
		t.Fatalf("DecryptFile() error = %v", err)
	}
	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("restored file = %q, want %q", got, content)
	}
}

func TestDecryptFileRejectsPlainFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "plain.json")
	if err := os.WriteFile(source, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := DecryptFile(source, filepath.Join(dir, "out.json"), DefaultEncryptionConfig("pw"))
	if err == nil {
		t.Error("DecryptFile() on unencrypted file = nil error")
	}
}
