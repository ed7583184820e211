package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/spf13/afero"
)

// newMemStore создаёт Store на in-memory файловой системе.
func newMemStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := New(fs, "/data")
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}
	return s, fs
}

// TestNew_CreatesDirectory проверяет создание корневой директории на диске.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/blobs"

	s, err := NewOS(dir)
	if err != nil {
		t.Fatalf("ошибка создания Store: %v", err)
	}
	if s.Root() != dir {
		t.Errorf("ожидался корень %s, получен %s", dir, s.Root())
	}

	ok, err := afero.DirExists(afero.NewOsFs(), dir)
	if err != nil || !ok {
		t.Fatalf("директория не создана: %v", err)
	}
}

// TestStoreOpen_RoundTrip проверяет побайтовое совпадение записанного и прочитанного.
func TestStoreOpen_RoundTrip(t *testing.T) {
	s, _ := newMemStore(t)

	content := bytes.Repeat([]byte("Тестовые данные 0123456789\n"), 500)
	res, err := s.Store(bytes.NewReader(content), "отчёт за март.txt")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if res.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), res.Size)
	}
	if !strings.HasSuffix(res.StoredName, "_отчётзамарт.txt") {
		t.Errorf("неожиданное имя blob-а: %s", res.StoredName)
	}
	if !strings.HasPrefix(res.ContentType, "text/plain") {
		t.Errorf("content type: ожидался text/plain, получен %s", res.ContentType)
	}

	rc, info, err := s.Open(res.StoredName)
	if err != nil {
		t.Fatalf("ошибка открытия: %v", err)
	}
	defer rc.Close()

	if info.Size != int64(len(content)) {
		t.Errorf("размер в BlobInfo: ожидалось %d, получено %d", len(content), info.Size)
	}

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("содержимое не совпадает с исходным")
	}
}

// TestStore_DetectsContentType проверяет определение типа по сигнатуре.
func TestStore_DetectsContentType(t *testing.T) {
	s, _ := newMemStore(t)

	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	res, err := s.Store(bytes.NewReader(png), "image.bin")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if res.ContentType != "image/png" {
		t.Errorf("content type: ожидался image/png, получен %s", res.ContentType)
	}
}

// TestStore_Empty проверяет отказ на пустом содержимом без побочных эффектов.
func TestStore_Empty(t *testing.T) {
	s, _ := newMemStore(t)

	_, err := s.Store(bytes.NewReader(nil), "empty.txt")
	if !errors.Is(err, ErrEmptyBlob) {
		t.Fatalf("ожидалась ErrEmptyBlob, получена %v", err)
	}

	blobs, err := s.List()
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("ожидалось 0 файлов, найдено %d", len(blobs))
	}
}

// TestStore_ReadErrorRemovesTemp проверяет удаление temp файла при ошибке чтения.
func TestStore_ReadErrorRemovesTemp(t *testing.T) {
	s, _ := newMemStore(t)

	r := io.MultiReader(
		bytes.NewReader(bytes.Repeat([]byte("x"), sniffLen+10)),
		iotest.ErrReader(errors.New("обрыв соединения")),
	)
	if _, err := s.Store(r, "broken.txt"); err == nil {
		t.Fatal("ожидалась ошибка записи")
	}

	blobs, err := s.List()
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if len(blobs) != 0 {
		t.Errorf("temp файл не удалён: %v", blobs)
	}
}

// TestStore_UniqueNames проверяет уникальность имён при одинаковом исходном имени.
func TestStore_UniqueNames(t *testing.T) {
	s, _ := newMemStore(t)

	a, err := s.Store(strings.NewReader("a"), "same.txt")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Store(strings.NewReader("b"), "same.txt")
	if err != nil {
		t.Fatal(err)
	}
	if a.StoredName == b.StoredName {
		t.Errorf("имена совпадают: %s", a.StoredName)
	}
}

// TestContainment проверяет запрет выхода за пределы корня.
func TestContainment(t *testing.T) {
	s, fs := newMemStore(t)
	if err := afero.WriteFile(fs, "/secret.txt", []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}

	names := []string{"../secret.txt", "", ".", "sub/file.txt", "/etc/passwd", "a/../../secret.txt"}
	for _, name := range names {
		if _, _, err := s.Open(name); !errors.Is(err, ErrPathEscape) {
			t.Errorf("Open(%q): ожидалась ErrPathEscape, получена %v", name, err)
		}
		if err := s.Delete(name); !errors.Is(err, ErrPathEscape) {
			t.Errorf("Delete(%q): ожидалась ErrPathEscape, получена %v", name, err)
		}
	}

	if ok, _ := afero.Exists(fs, "/secret.txt"); !ok {
		t.Error("файл вне корня был удалён")
	}
}

// TestStore_SanitizesTraversal проверяет, что имя с ../ остаётся внутри корня.
func TestStore_SanitizesTraversal(t *testing.T) {
	s, _ := newMemStore(t)

	res, err := s.Store(strings.NewReader("data"), "../../etc/passwd")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if strings.Contains(res.StoredName, "/") {
		t.Errorf("имя содержит разделитель: %s", res.StoredName)
	}
	if !s.Exists(res.StoredName) {
		t.Error("blob не найден в корне")
	}
}

// TestDelete_Idempotent проверяет, что повторное удаление не является ошибкой.
func TestDelete_Idempotent(t *testing.T) {
	s, _ := newMemStore(t)

	res, err := s.Store(strings.NewReader("data"), "file.txt")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Delete(res.StoredName); err != nil {
		t.Fatalf("первое удаление: %v", err)
	}
	if err := s.Delete(res.StoredName); err != nil {
		t.Fatalf("повторное удаление: %v", err)
	}
	if s.Exists(res.StoredName) {
		t.Error("файл всё ещё существует")
	}

	if _, _, err := s.Open(res.StoredName); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получена %v", err)
	}
}

// TestList проверяет перечисление blob-ов без поддиректорий.
func TestList(t *testing.T) {
	s, fs := newMemStore(t)

	for _, name := range []string{"a.txt", "b.txt"} {
		if _, err := s.Store(strings.NewReader(name), name); err != nil {
			t.Fatal(err)
		}
	}
	if err := fs.MkdirAll("/data/subdir", 0o750); err != nil {
		t.Fatal(err)
	}

	blobs, err := s.List()
	if err != nil {
		t.Fatalf("ошибка List: %v", err)
	}
	if len(blobs) != 2 {
		t.Errorf("ожидалось 2 файла, найдено %d", len(blobs))
	}
}

// TestSanitize проверяет очистку имени файла.
func TestSanitize(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my file (1).pdf", "myfile1.pdf"},
		{"Документ.docx", "Документ.docx"},
		{"!!!", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		if got := sanitize(tt.input); got != tt.want {
			t.Errorf("sanitize(%q) = %q, ожидалось %q", tt.input, got, tt.want)
		}
	}
}

// TestGenerateStoredName_Truncates проверяет ограничение длины имени.
func TestGenerateStoredName_Truncates(t *testing.T) {
	name := generateStoredName(strings.Repeat("я", 300) + ".txt")
	// 36 символов uuid + "_" + ограниченное имя
	parts := strings.SplitN(name, "_", 2)
	if len(parts) != 2 {
		t.Fatalf("неожиданный формат: %s", name)
	}
	if n := len([]rune(parts[1])); n != maxNameRunes {
		t.Errorf("длина имени: ожидалось %d, получено %d", maxNameRunes, n)
	}
}

// TestCheckReady проверяет readiness-проверку и отсутствие следов после неё.
func TestCheckReady(t *testing.T) {
	s, _ := newMemStore(t)

	status, msg := s.CheckReady(context.Background())
	if status != "ok" {
		t.Fatalf("ожидался статус ok, получен %s (%s)", status, msg)
	}

	blobs, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(blobs) != 0 {
		t.Errorf("после проверки не должно оставаться файлов, найдено %d", len(blobs))
	}

	ro := &Store{fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), root: "/data"}
	if status, _ := ro.CheckReady(context.Background()); status != "fail" {
		t.Errorf("read-only ФС: ожидался статус fail, получен %s", status)
	}
}
