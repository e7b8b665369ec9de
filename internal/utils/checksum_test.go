package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseAlgorithms(t *testing.T) {
	tests := []struct {
		input string
		want  []Algorithm
	}{
		{"sha256", []Algorithm{SHA256}},
		{"sha512,sha256", []Algorithm{SHA256, SHA512}},
		{"sha256, SHA384 ,md5,sha256", []Algorithm{SHA256, SHA384}},
		{"", nil},
		{"crc32", nil},
	}

	for _, tt := range tests {
		got := ParseAlgorithms(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseAlgorithms(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestChecksums(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(path, []byte("hello\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	sum, err := Checksums(path, SupportedAlgorithms)
	if err != nil {
		t.Fatalf("Checksums failed: %v", err)
	}

	if sum.Size != 6 {
		t.Errorf("Size = %d, want 6", sum.Size)
	}

	want := map[Algorithm]string{
		SHA256: "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03",
		SHA384: "1d0f284efe3edea4b9ca3bd514fa134b17eae361ccc7a1eefeff801b9bd6604e01f21f6bf249ef030599f0c218f2ba8c",
		SHA512: "e7c22b994c59d9cf2b48e549b1e24666636045930d3da7c1acb299d1c3b7f931f94aae41edda2c2b207a36e10f8bcb8d45223e54878f5b316e7ce3b6bc019629",
	}
	for alg, digest := range want {
		if sum.Digests[alg] != digest {
			t.Errorf("%s = %s, want %s", alg, sum.Digests[alg], digest)
		}
	}
}

func TestChecksumsOnlyRequested(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	os.WriteFile(path, []byte("data"), 0644)

	sum, err := Checksums(path, []Algorithm{SHA256, SHA512})
	if err != nil {
		t.Fatalf("Checksums failed: %v", err)
	}
	if _, ok := sum.Digests[SHA384]; ok {
		t.Errorf("SHA384 digest computed but not requested")
	}
	if len(sum.Digests) != 2 {
		t.Errorf("got %d digests, want 2", len(sum.Digests))
	}
}

func TestChecksumsWithoutAlgorithms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	os.WriteFile(path, []byte("12345"), 0644)

	sum, err := Checksums(path, nil)
	if err != nil {
		t.Fatalf("Checksums failed: %v", err)
	}
	if sum.Size != 5 || len(sum.Digests) != 0 {
		t.Errorf("got size %d and %d digests, want 5 and 0", sum.Size, len(sum.Digests))
	}
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "gone"), SHA256)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHashFileLowercaseHex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	os.WriteFile(path, []byte{0xff, 0x00}, 0644)

	digest, err := HashFile(path, SHA384)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if digest != strings.ToLower(digest) || len(digest) != 96 {
		t.Errorf("unexpected digest %q", digest)
	}
}

func TestChecksumReader(t *testing.T) {
	sum, err := ChecksumReader(strings.NewReader("hello\n"), []Algorithm{SHA256})
	if err != nil {
		t.Fatalf("ChecksumReader failed: %v", err)
	}
	if sum.Digests[SHA256] != "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03" {
		t.Errorf("unexpected digest %s", sum.Digests[SHA256])
	}
}
