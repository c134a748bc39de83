package lru

type NullCache struct{}

func (NullCache) Add(key uint64, value interface{}, size uint64) bool { return false }

func (NullCache) Get(key uint64) (interface{}, bool) { return nil, false }

func (NullCache) Remove(key uint64) {}

func (NullCache) Purge() {}

func (NullCache) Count() int { return 0 }
