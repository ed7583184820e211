package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/bigkaa/datashare/internal/repository"
)

// upload — загрузка с параметрами по умолчанию.
func upload(t *testing.T, e *testEnv, owner, name, content string) *UploadResult {
	t.Helper()
	res, err := e.files.Upload(context.Background(), UploadParams{
		OwnerID:  owner,
		FileName: name,
		Size:     int64(len(content)),
		Reader:   strings.NewReader(content),
	})
	if err != nil {
		t.Fatalf("Upload(%q) ошибка: %v", name, err)
	}
	return res
}

func TestUpload_RejectedExtension(t *testing.T) {
	names := []string{
		"setup.exe",
		"SETUP.EXE",
		"archive.tar.bat",
		"evil.exe.",
		"evil.exe  ",
		"script.Ps1",
		`C:\Users\me\tool.msi`,
	}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			e := newTestEnv(t)
			_, err := e.files.Upload(context.Background(), UploadParams{
				OwnerID:  "alice",
				FileName: name,
				Size:     4,
				Reader:   strings.NewReader("data"),
			})
			if !errors.Is(err, ErrRejectedExtension) {
				t.Fatalf("хотели ErrRejectedExtension, получили %v", err)
			}

			if n := e.blobCount(t); n != 0 {
				t.Errorf("blob-ов: хотели 0, получили %d", n)
			}
			list, _ := e.files.List(context.Background(), "alice")
			if len(list) != 0 {
				t.Errorf("записей: хотели 0, получили %d", len(list))
			}
		})
	}
}

func TestUpload_AllowedNames(t *testing.T) {
	names := []string{"photo.jpg", ".bashrc", "README", "exe", "notes.exe.txt"}

	e := newTestEnv(t)
	for _, name := range names {
		upload(t, e, "alice", name, "data")
	}

	list, err := e.files.List(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != len(names) {
		t.Errorf("записей: хотели %d, получили %d", len(names), len(list))
	}
}

func TestUpload_InvalidName(t *testing.T) {
	e := newTestEnv(t)
	for _, name := range []string{"", "   ", ".", "..", "dir/"} {
		_, err := e.files.Upload(context.Background(), UploadParams{
			OwnerID:  "alice",
			FileName: name,
			Reader:   strings.NewReader("data"),
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Upload(%q): хотели ErrValidation, получили %v", name, err)
		}
	}
}

func TestUpload_EmptyContent(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.files.Upload(context.Background(), UploadParams{
		OwnerID:  "alice",
		FileName: "empty.txt",
		Reader:   strings.NewReader(""),
	})
	if !errors.Is(err, ErrStorage) || !errors.Is(err, ErrValidation) {
		t.Fatalf("хотели ErrStorage и ErrValidation, получили %v", err)
	}
	if n := e.blobCount(t); n != 0 {
		t.Errorf("blob-ов: хотели 0, получили %d", n)
	}
}

func TestUpload_StripsPath(t *testing.T) {
	e := newTestEnv(t)
	res := upload(t, e, "alice", "../../etc/report.pdf", "data")

	meta, err := e.shares.Metadata(context.Background(), res.ShareToken)
	if err != nil {
		t.Fatal(err)
	}
	if meta.FileName != "report.pdf" {
		t.Errorf("FileName: хотели report.pdf, получили %q", meta.FileName)
	}
}

func TestUpload_ExpirationClamp(t *testing.T) {
	ptr := func(v int) *int { return &v }

	tests := []struct {
		name      string
		requested *int
		wantDays  int
	}{
		{"по умолчанию", nil, 3},
		{"ноль", ptr(0), 1},
		{"отрицательное", ptr(-5), 1},
		{"в пределах", ptr(2), 2},
		{"ровно максимум", ptr(7), 7},
		{"больше максимума", ptr(100), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			res, err := e.files.Upload(context.Background(), UploadParams{
				OwnerID:        "alice",
				FileName:       "a.txt",
				Size:           4,
				Reader:         strings.NewReader("data"),
				ExpirationDays: tt.requested,
			})
			if err != nil {
				t.Fatalf("Upload() ошибка: %v", err)
			}

			want := e.clock.Now().AddDate(0, 0, tt.wantDays)
			if !res.ExpiresAt.Equal(want) {
				t.Errorf("ExpiresAt: хотели %v, получили %v", want, res.ExpiresAt)
			}
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	t.Run("заявленный размер", func(t *testing.T) {
		e := newTestEnv(t)
		_, err := e.files.Upload(context.Background(), UploadParams{
			OwnerID:  "alice",
			FileName: "big.bin",
			Size:     2048,
			Reader:   bytes.NewReader(make([]byte, 2048)),
		})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("хотели ErrFileTooLarge, получили %v", err)
		}
		if n := e.blobCount(t); n != 0 {
			t.Errorf("blob-ов: хотели 0, получили %d", n)
		}
	})

	t.Run("фактический размер", func(t *testing.T) {
		e := newTestEnv(t)
		_, err := e.files.Upload(context.Background(), UploadParams{
			OwnerID:  "alice",
			FileName: "big.bin",
			Size:     -1,
			Reader:   bytes.NewReader(make([]byte, 1025)),
		})
		if !errors.Is(err, ErrFileTooLarge) {
			t.Fatalf("хотели ErrFileTooLarge, получили %v", err)
		}
		if n := e.blobCount(t); n != 0 {
			t.Errorf("blob-ов: хотели 0, получили %d", n)
		}
	})

	t.Run("ровно максимум", func(t *testing.T) {
		e := newTestEnv(t)
		upload(t, e, "alice", "max.bin", strings.Repeat("x", 1024))
	})
}

func TestUpload_TokenCollisionRetry(t *testing.T) {
	e := newTestEnv(t)

	tokens := []string{"token-1", "token-1", "token-2"}
	e.files.newToken = func() (string, error) {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok, nil
	}

	first := upload(t, e, "alice", "a.txt", "first")
	second := upload(t, e, "alice", "b.txt", "second")

	if first.ShareToken != "token-1" || second.ShareToken != "token-2" {
		t.Errorf("токены: хотели token-1/token-2, получили %s/%s", first.ShareToken, second.ShareToken)
	}
}

func TestUpload_TokenCollisionExhausted(t *testing.T) {
	e := newTestEnv(t)
	e.files.newToken = func() (string, error) { return "same-token", nil }

	upload(t, e, "alice", "a.txt", "first")

	_, err := e.files.Upload(context.Background(), UploadParams{
		OwnerID:  "alice",
		FileName: "b.txt",
		Reader:   strings.NewReader("second"),
	})
	if !errors.Is(err, ErrStorage) || !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("хотели ErrStorage с ErrConflict, получили %v", err)
	}

	// Blob неудачной загрузки удалён, первый файл на месте
	if n := e.blobCount(t); n != 1 {
		t.Errorf("blob-ов: хотели 1, получили %d", n)
	}
}

func TestUpload_StorageFailure(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.files.Upload(context.Background(), UploadParams{
		OwnerID:  "alice",
		FileName: "a.txt",
		Reader:   io.MultiReader(strings.NewReader("data"), errReader{}),
	})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("хотели ErrStorage, получили %v", err)
	}

	list, _ := e.files.List(context.Background(), "alice")
	if len(list) != 0 {
		t.Errorf("записей после ошибки хранилища: хотели 0, получили %d", len(list))
	}
}

// errReader — reader, всегда возвращающий ошибку.
type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("обрыв соединения") }

func TestGenerateToken(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		tok, err := generateToken()
		if err != nil {
			t.Fatal(err)
		}
		if len(tok) != 43 {
			t.Errorf("длина токена: хотели 43, получили %d", len(tok))
		}
		if strings.ContainsAny(tok, "+/=") {
			t.Errorf("токен не в base64url: %s", tok)
		}
		if seen[tok] {
			t.Fatalf("повтор токена: %s", tok)
		}
		seen[tok] = true
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.exe", "exe"},
		{"A.Tar.GZ", "gz"},
		{".bashrc", ""},
		{"noext", ""},
		{"trailing.exe...", "exe"},
		{"spaces.bat   ", "bat"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := extension(tt.name); got != tt.want {
			t.Errorf("extension(%q) = %q, хотели %q", tt.name, got, tt.want)
		}
	}
}

func TestList(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for i := range 3 {
		res := upload(t, e, "alice", fmt.Sprintf("file-%d.txt", i), "data")
		ids = append(ids, res.FileID)
		e.clock.Advance(1)
	}
	upload(t, e, "bob", "other.txt", "data")

	// Скачивание увеличивает счётчик в списке
	first, err := e.files.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	d, err := e.shares.Download(ctx, first[0].ShareToken)
	if err != nil {
		t.Fatal(err)
	}
	d.Content.Close()

	list, err := e.files.List(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("записей: хотели 3, получили %d", len(list))
	}
	for i, item := range list {
		if item.FileID != ids[i] {
			t.Errorf("позиция %d: хотели %s, получили %s", i, ids[i], item.FileID)
		}
		if item.ShareToken == "" {
			t.Errorf("позиция %d: пустой токен", i)
		}
		if item.Size != 4 {
			t.Errorf("позиция %d: размер %d, хотели 4", i, item.Size)
		}
	}
	if list[0].DownloadCount != 1 {
		t.Errorf("DownloadCount: хотели 1, получили %d", list[0].DownloadCount)
	}

	empty, err := e.files.List(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("для пользователя без файлов ожидался пустой список, получили %v", empty)
	}
}

func TestDelete_OwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := upload(t, e, "alice", "a.txt", "data")

	if err := e.files.Delete(ctx, "bob", res.FileID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("хотели ErrForbidden, получили %v", err)
	}
	if n := e.blobCount(t); n != 1 {
		t.Errorf("blob чужого файла удалён")
	}
	if _, err := e.shares.Metadata(ctx, res.ShareToken); err != nil {
		t.Errorf("ссылка должна остаться доступной: %v", err)
	}
}

func TestDelete_Twice(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := upload(t, e, "alice", "a.txt", "data")

	if err := e.files.Delete(ctx, "alice", res.FileID); err != nil {
		t.Fatalf("первое удаление: %v", err)
	}
	if err := e.files.Delete(ctx, "alice", res.FileID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("повторное удаление: хотели ErrNotFound, получили %v", err)
	}
	if n := e.blobCount(t); n != 0 {
		t.Errorf("blob-ов: хотели 0, получили %d", n)
	}
	if _, err := e.shares.Metadata(ctx, res.ShareToken); !errors.Is(err, ErrNotFound) {
		t.Errorf("ссылка после удаления: хотели ErrNotFound, получили %v", err)
	}
}

func TestDelete_UnknownOrMalformedID(t *testing.T) {
	e := newTestEnv(t)
	for _, id := range []string{"00000000-0000-0000-0000-000000000001", "не-uuid", ""} {
		if err := e.files.Delete(context.Background(), "alice", id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete(%q): хотели ErrNotFound, получили %v", id, err)
		}
	}
}

func TestDelete_BlobFailureDoesNotBlock(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	res := upload(t, e, "alice", "a.txt", "data")

	f, err := e.db.Files().GetByID(ctx, res.FileID)
	if err != nil {
		t.Fatal(err)
	}
	e.blobs.failDelete(f.StoredName, true)

	if err := e.files.Delete(ctx, "alice", res.FileID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := e.db.Files().GetByID(ctx, res.FileID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("запись должна быть удалена, получили %v", err)
	}
}
