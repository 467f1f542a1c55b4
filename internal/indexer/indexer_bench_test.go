package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func BenchmarkBuildFullIndex(b *testing.B) {
	root := b.TempDir()
	for i := 0; i < 200; i++ {
		path := filepath.Join(root, fmt.Sprintf("pkg%d/file.go", i))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.Fatal(err)
		}
		content := fmt.Sprintf("package pkg%d\n\nfunc Handler%d() error {\n\treturn nil\n}\n", i, i)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dbDir := filepath.Join(b.TempDir(), "db")
		emb := &stubEmbedder{dim: 16}
		idx, err := Open(root, dbDir, emb, Config{CacheRoot: filepath.Join(b.TempDir(), "cache")})
		if err != nil {
			b.Fatal(err)
		}
		if _, err := idx.Build(context.Background(), Config{}); err != nil {
			b.Fatal(err)
		}
		idx.Close()
	}
}

func BenchmarkIndexFileSingleFile(b *testing.B) {
	root := b.TempDir()
	path := filepath.Join(root, "main.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		b.Fatal(err)
	}

	dbDir := filepath.Join(b.TempDir(), "db")
	emb := &stubEmbedder{dim: 16}
	idx, err := Open(root, dbDir, emb, Config{CacheRoot: filepath.Join(b.TempDir(), "cache")})
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := idx.IndexFile(ctx, "main.go"); err != nil {
			b.Fatal(err)
		}
	}
}
