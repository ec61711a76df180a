package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/matzehuels/maskcloud/pkg/cache"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestCacheClear(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	// Nothing to clear before the first run.
	fc, err := openCacheDir()
	if err != nil || fc != nil {
		t.Fatalf("openCacheDir() = %v, %v; want nil, nil", fc, err)
	}

	dir, _ := cacheDir()
	fc, err = cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, key := range []string{"a", "b", "c"} {
		if err := fc.Set(ctx, key, []byte("png"), time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	c := testCLI(t)
	root := c.RootCommand()
	root.SetArgs([]string{"cache", "clear"})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("cache clear: %v", err)
	}

	entries, _, err := fc.Usage()
	if err != nil {
		t.Fatal(err)
	}
	if entries != 0 {
		t.Errorf("%d entries left after clear", entries)
	}
}

func TestCachePath(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")

	var out bytes.Buffer
	root := testCLI(t).RootCommand()
	root.SetArgs([]string{"cache", "path"})
	root.SetOut(&out)
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := out.String(); got != "/tmp/custom-cache/"+appName+"\n" {
		t.Errorf("cache path printed %q", got)
	}
}
