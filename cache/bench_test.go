package cache_test

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/meigma/nar"
	"github.com/meigma/nar/cache"
	"github.com/meigma/nar/cache/disk"
	"github.com/meigma/nar/cache/memory"
)

var benchSinkBytes []byte

func BenchmarkFetcherHit(b *testing.B) {
	sizes := []int{4 << 10, 64 << 10, 1 << 20}

	for _, size := range sizes {
		data := bytes.Repeat([]byte{0xab}, size*4)
		src := nar.ReaderAtFetcher(bytes.NewReader(data))

		caches := []struct {
			name string
			new  func(b *testing.B) cache.Cache
		}{
			{name: "cache=memory", new: func(b *testing.B) cache.Cache {
				c, err := memory.New(16)
				if err != nil {
					b.Fatal(err)
				}
				return c
			}},
			{name: "cache=disk", new: func(b *testing.B) cache.Cache {
				c, err := disk.New(filepath.Join(b.TempDir(), "cache"))
				if err != nil {
					b.Fatal(err)
				}
				return c
			}},
		}

		for _, cc := range caches {
			b.Run(fmt.Sprintf("size=%d/%s", size, cc.name), func(b *testing.B) {
				f := cache.NewFetcher(src, cc.new(b), "bench")
				for i := range 4 {
					if _, err := f.Fetch(uint64(i*size), uint64(size)); err != nil {
						b.Fatal(err)
					}
				}

				b.SetBytes(int64(size))
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; b.Loop(); i++ {
					got, err := f.Fetch(uint64((i%4)*size), uint64(size))
					if err != nil {
						b.Fatal(err)
					}
					benchSinkBytes = got
				}
			})
		}
	}
}
