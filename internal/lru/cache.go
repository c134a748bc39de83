package lru

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

var ErrIllegalCapacity = errors.New("illegal lru cache capacity")
var ErrInvalidSharding = errors.New("invalid sharding")

type OnEvict func(k uint64, v interface{})

// Cache is a sharded LRU keyed by uint64 holding values of caller-declared
// weight. The byte budget is split evenly between shards, so eviction order
// is only approximately least-recently-used across the whole cache.
type Cache struct {
	maxBytes uint64
	capacity uint64
	shards   []*lruShard
	onEvict  OnEvict
}

func NewCache(shards int, maxTotalBytes uint64, onEvict OnEvict) (*Cache, error) {
	if maxTotalBytes <= 2 {
		return nil, ErrIllegalCapacity
	}

	if shards < 1 {
		return nil, ErrInvalidSharding
	}

	c := Cache{
		maxBytes: maxTotalBytes,
		capacity: uint64(shards),
		shards:   make([]*lruShard, shards),
		onEvict:  onEvict,
	}

	shardMaxBytes := maxTotalBytes / c.capacity
	for i := range c.shards {
		c.shards[i] = newLruShard(shardMaxBytes, onEvict)
	}

	return &c, nil
}

// Add value of the given weight under key and report whether eviction happened
func (c *Cache) Add(key uint64, value interface{}, size uint64) bool {
	shard := c.getShard(key)
	return shard.add(key, value, size)
}

func (c *Cache) Get(key uint64) (interface{}, bool) {
	shard := c.getShard(key)
	return shard.get(key)
}

func (c *Cache) Remove(key uint64) {
	shard := c.getShard(key)
	shard.remove(key)
}

func (c *Cache) Purge() {
	var wg sync.WaitGroup

	wg.Add(len(c.shards))
	for i := range c.shards {
		go func(i int) {
			defer wg.Done()
			c.shards[i].purge()
		}(i)
	}

	wg.Wait()
}

func (c *Cache) Count() int {
	var total int64
	for i := range c.shards {
		total += atomic.LoadInt64(&c.shards[i].elemsCount)
	}
	return int(total)
}

func (c *Cache) Keys() []uint64 {
	keys := make([]uint64, 0, c.Count())

	for i := range c.shards {
		keys = append(keys, c.shards[i].keys()...)
	}

	return keys
}

func (c *Cache) getShard(key uint64) *lruShard {
	bs := make([]byte, 8)
	binary.LittleEndian.PutUint64(bs, key)
	hash := xxhash.Sum64(bs)
	return c.shards[hash%c.capacity]
}
