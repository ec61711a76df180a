package fonts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/maskcloud/pkg/errors"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.ttf")
	if err := os.WriteFile(path, []byte("font bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	bold, _ := Builtin(Bold)

	tests := []struct {
		name     string
		uploaded []byte
		spec     string
		want     []byte
	}{
		{"default", nil, "", Default()},
		{"uploaded wins", []byte("upload"), "bold", []byte("upload")},
		{"builtin", nil, "bold", bold},
		{"path", nil, path, []byte("font bytes")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.uploaded, tt.spec)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Resolve returned %d bytes, want %d", len(got), len(tt.want))
			}
		})
	}
}

func TestResolveMissingFile(t *testing.T) {
	_, err := Resolve(nil, filepath.Join(t.TempDir(), "nope.ttf"))
	if !errors.Is(err, errors.ErrCodeFontLoad) {
		t.Errorf("err = %v, want FONT_LOAD", err)
	}
}
