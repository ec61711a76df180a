package cli

import (
	"context"
	"testing"

	"github.com/matzehuels/maskcloud/pkg/cache"
	"github.com/matzehuels/maskcloud/pkg/store"
)

func TestServeBackends(t *testing.T) {
	c := testCLI(t)
	ctx := context.Background()

	ch, keyer, err := c.serverCache(ctx, ServerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ch.(*cache.MemoryCache); !ok || keyer != nil {
		t.Errorf("serverCache() = %T, %v; want memory cache and default keyer", ch, keyer)
	}

	st, err := c.serverStore(ctx, ServerConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*store.MemoryStore); !ok {
		t.Errorf("serverStore() = %T, want *store.MemoryStore", st)
	}
}

func TestServeBanner(t *testing.T) {
	tests := []struct {
		name        string
		sc          ServerConfig
		cache, runs string
	}{
		{"memory", ServerConfig{}, "memory", "memory"},
		{"backends", ServerConfig{RedisAddr: "redis:6379", MongoURI: "mongodb://user:secret@db", MongoDB: "clouds"}, "redis redis:6379", "mongodb clouds"},
		{"default db", ServerConfig{MongoURI: "mongodb://db"}, "memory", "mongodb " + store.DefaultDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cacheBackend(tt.sc); got != tt.cache {
				t.Errorf("cacheBackend() = %q, want %q", got, tt.cache)
			}
			if got := storeBackend(tt.sc); got != tt.runs {
				t.Errorf("storeBackend() = %q, want %q", got, tt.runs)
			}
		})
	}

	if got := listenURL(":8080"); got != "http://localhost:8080" {
		t.Errorf("listenURL(:8080) = %q", got)
	}
	if got := listenURL("0.0.0.0:9000"); got != "http://0.0.0.0:9000" {
		t.Errorf("listenURL(0.0.0.0:9000) = %q", got)
	}
}
