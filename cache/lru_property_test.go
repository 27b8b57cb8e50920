package cache

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

// lruModel 是参考实现:一个 MRU 在前的键列表。
type lruModel struct {
	capacity int
	keys     []string
}

func (m *lruModel) store(key string) {
	m.remove(key)
	m.keys = append([]string{key}, m.keys...)
	if len(m.keys) > m.capacity {
		m.keys = m.keys[:m.capacity]
	}
}

func (m *lruModel) lookup(key string) bool {
	for _, k := range m.keys {
		if k == key {
			m.remove(key)
			m.keys = append([]string{key}, m.keys...)
			return true
		}
	}
	return false
}

func (m *lruModel) remove(key string) {
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			return
		}
	}
}

func TestProperty_LRUMatchesReferenceModel(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("random op sequences keep cache and model in lockstep", prop.ForAll(
		func(capacity int, opCount int, seed int) bool {
			c := New(Config{Enabled: true, MaxEntries: capacity, MaxAge: time.Hour}, zap.NewNop())
			model := &lruModel{capacity: capacity}
			rng := rand.New(rand.NewSource(int64(seed)))

			for i := 0; i < opCount; i++ {
				key := fmt.Sprintf("fp-%d", rng.Intn(10))
				if rng.Intn(2) == 0 {
					c.Store(key, sampleResult(key), sampleMeta())
					model.store(key)
				} else {
					_, hit := c.Lookup(key)
					expected := model.lookup(key)
					if hit != expected {
						t.Logf("lookup %s: cache hit=%v, model hit=%v", key, hit, expected)
						return false
					}
				}
			}

			// 快照按 MRU 在前导出,应与模型逐项一致
			records := c.Snapshot()
			if len(records) != len(model.keys) {
				t.Logf("size mismatch: cache %d, model %d", len(records), len(model.keys))
				return false
			}
			for i, rec := range records {
				if rec.Fingerprint != model.keys[i] {
					t.Logf("order mismatch at %d: cache %s, model %s", i, rec.Fingerprint, model.keys[i])
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 6),
		gen.IntRange(1, 60),
		gen.Int(),
	))

	properties.Property("entry count never exceeds capacity", prop.ForAll(
		func(capacity int, keyCount int) bool {
			c := New(Config{Enabled: true, MaxEntries: capacity, MaxAge: time.Hour}, zap.NewNop())

			for i := 0; i < keyCount; i++ {
				c.Store(fmt.Sprintf("fp-%d", i), sampleResult("answer"), sampleMeta())
			}

			if c.Len() > capacity {
				t.Logf("cache holds %d entries with capacity %d", c.Len(), capacity)
				return false
			}

			// 最近写入的 min(keyCount, capacity) 个键必须存活
			surviving := capacity
			if keyCount < capacity {
				surviving = keyCount
			}
			for i := keyCount - surviving; i < keyCount; i++ {
				if _, ok := c.Lookup(fmt.Sprintf("fp-%d", i)); !ok {
					t.Logf("recently stored key fp-%d was evicted", i)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 8),
		gen.IntRange(1, 40),
	))

	properties.TestingRun(t)
}
