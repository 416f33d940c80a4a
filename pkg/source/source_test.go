package source

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	lferrors "github.com/logflow/textsniff/pkg/errors"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func readAll(t *testing.T, src Source) []byte {
	t.Helper()
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open(%s) error = %v", src.Location(), err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll(%s) error = %v", src.Location(), err)
	}
	return data
}

func TestFile_Open(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("caf\xe9\r\nline two\n")

	tests := []struct {
		name     string
		file     string
		data     []byte
		seekable bool
	}{
		{"plain", "plain.txt", payload, true},
		{"gzip suffix", "log.txt.gz", gzipped(t, payload), false},
		{"gzip magic", "noext", gzipped(t, payload), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewFile(writeFile(t, dir, tt.file, tt.data))
			if err != nil {
				t.Fatalf("NewFile() error = %v", err)
			}
			if got := readAll(t, src); !bytes.Equal(got, payload) {
				t.Errorf("contents = %q, want %q", got, payload)
			}
			// Reopening yields the same bytes.
			if got := readAll(t, src); !bytes.Equal(got, payload) {
				t.Errorf("reopened contents = %q, want %q", got, payload)
			}

			rc, err := src.Open(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			if _, ok := rc.(io.Seeker); ok != tt.seekable {
				t.Errorf("seekable = %v, want %v", ok, tt.seekable)
			}
		})
	}
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFile(filepath.Join(dir, "missing.txt"))
	if !lferrors.IsCode(err, lferrors.CodeSourceNotFound) {
		t.Errorf("NewFile(missing) error = %v, want source not found", err)
	}

	_, err = NewFile(dir)
	if !lferrors.IsCode(err, lferrors.CodeInvalidLocation) {
		t.Errorf("NewFile(dir) error = %v, want invalid location", err)
	}
}

func TestFile_CanceledContext(t *testing.T) {
	src, err := NewFile(writeFile(t, t.TempDir(), "a.txt", []byte("a")))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Open(ctx); !lferrors.IsCode(err, lferrors.CodeContextCanceled) {
		t.Errorf("Open() error = %v, want canceled", err)
	}
}

func TestMemoryAndStdin(t *testing.T) {
	m := NewMemory("m1", []byte("hello"))
	if m.Location() != "memory://m1" || m.Size() != 5 {
		t.Errorf("Memory = %s, %d", m.Location(), m.Size())
	}
	rc, _ := m.Open(context.Background())
	if _, ok := rc.(io.Seeker); !ok {
		t.Error("memory reader should be seekable")
	}

	in, err := NewStdin(strings.NewReader("piped\n"))
	if err != nil {
		t.Fatal(err)
	}
	if in.Location() != StdinLocation {
		t.Errorf("Location() = %q", in.Location())
	}
	for i := 0; i < 2; i++ {
		if got := readAll(t, in); string(got) != "piped\n" {
			t.Errorf("read %d = %q", i, got)
		}
	}
}

func TestReadPrefix(t *testing.T) {
	src := NewMemory("p", []byte("0123456789"))

	tests := []struct {
		n    int
		want string
	}{
		{4, "0123"},
		{10, "0123456789"},
		{1024, "0123456789"},
		{0, ""},
	}
	for _, tt := range tests {
		got, err := ReadPrefix(context.Background(), src, tt.n)
		if err != nil {
			t.Fatalf("ReadPrefix(%d) error = %v", tt.n, err)
		}
		if string(got) != tt.want {
			t.Errorf("ReadPrefix(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}

	empty, err := ReadPrefix(context.Background(), NewMemory("e", nil), 16)
	if err != nil || len(empty) != 0 {
		t.Errorf("ReadPrefix(empty) = %q, %v", empty, err)
	}
}

func TestParseAndExpand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", []byte("b"))
	writeFile(t, dir, "a.txt", []byte("a"))
	writeFile(t, dir, "c.log", []byte("c"))
	if err := os.Mkdir(filepath.Join(dir, "d.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	srcs, err := Expand(ctx, []string{filepath.Join(dir, "*.txt"), "-"}, Options{Stdin: strings.NewReader("in")})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}

	var got []string
	for _, s := range srcs {
		got = append(got, filepath.Base(s.Location()))
	}
	want := []string{"a.txt", "b.txt", "-"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Expand() = %v, want %v", got, want)
	}

	_, err = Expand(ctx, []string{filepath.Join(dir, "*.none")}, Options{})
	if !lferrors.IsCode(err, lferrors.CodeSourceNotFound) {
		t.Errorf("Expand(no match) error = %v", err)
	}

	src, err := Parse(ctx, filepath.Join(dir, "c.log"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*File); !ok {
		t.Errorf("Parse(path) = %T, want *File", src)
	}
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://logs/2024/app.log", "logs", "2024/app.log", false},
		{"s3://logs/a", "logs", "a", false},
		{"s3://logs", "", "", true},
		{"s3:///key", "", "", true},
		{"/tmp/file", "", "", true},
	}
	for _, tt := range tests {
		bucket, key, err := ParseS3URL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseS3URL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if bucket != tt.bucket || key != tt.key {
			t.Errorf("ParseS3URL(%q) = %q, %q, want %q, %q", tt.in, bucket, key, tt.bucket, tt.key)
		}
	}
}

type fakeS3 struct {
	objects map[string][]byte
	gets    int
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	mod := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data))), LastModified: &mod}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.gets++
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{"logs/app.log": []byte("one\ntwo\n")}}
	ctx := context.Background()

	src, err := NewS3(ctx, client, "logs", "app.log")
	if err != nil {
		t.Fatalf("NewS3() error = %v", err)
	}
	if src.Location() != "s3://logs/app.log" || src.Size() != 8 {
		t.Errorf("S3 = %s, %d", src.Location(), src.Size())
	}
	if got := readAll(t, src); string(got) != "one\ntwo\n" {
		t.Errorf("contents = %q", got)
	}
	prefix, err := ReadPrefix(ctx, src, 3)
	if err != nil || string(prefix) != "one" {
		t.Errorf("ReadPrefix() = %q, %v", prefix, err)
	}
	if client.gets != 2 {
		t.Errorf("GetObject calls = %d, want 2", client.gets)
	}

	if _, err := NewS3(ctx, client, "logs", "missing"); !lferrors.IsCode(err, lferrors.CodeSourceNotFound) {
		t.Errorf("NewS3(missing) error = %v", err)
	}
}
