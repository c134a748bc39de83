package lru

import (
	"container/list"
	"sync"
	"sync/atomic"
)

type lruShard struct {
	mu         sync.RWMutex
	lmu        sync.Mutex
	totalBytes uint64
	elemsCount int64
	maxBytes   uint64
	evictList  *list.List
	elems      map[uint64]*list.Element
	onEvict    OnEvict
}

func newLruShard(maxBytes uint64, onEvict OnEvict) *lruShard {
	return &lruShard{
		maxBytes:  maxBytes,
		evictList: list.New(),
		elems:     make(map[uint64]*list.Element),
		onEvict:   onEvict,
	}
}

type entry struct {
	key   uint64
	value interface{}
	size  uint64
}

func (ls *lruShard) get(key uint64) (interface{}, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	if elem, ok := ls.elems[key]; ok {
		ls.lmu.Lock()
		ls.evictList.MoveToFront(elem)
		ls.lmu.Unlock()
		return elem.Value.(*entry).value, true
	} else {
		return nil, false
	}
}

// Add value of the given weight under key and report whether eviction happened
func (ls *lruShard) add(key uint64, value interface{}, size uint64) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	// until the new value fits remove the oldest entries
	var evicted bool
	for ls.totalBytes+size > ls.maxBytes {
		evictedKey, evictedValue, ok := ls.removeOldestUnderLock()
		if !ok {
			break
		}
		evicted = true
		if ls.onEvict != nil {
			ls.onEvict(evictedKey, evictedValue)
		}
	}

	// Check for existing item
	if elem, ok := ls.elems[key]; ok {
		ls.lmu.Lock()
		ls.evictList.MoveToFront(elem)
		ls.lmu.Unlock()
		kv := elem.Value.(*entry)
		ls.totalBytes -= kv.size
		kv.value = value
		kv.size = size
		ls.totalBytes += size
		return evicted
	}

	// add new item
	ls.lmu.Lock()
	elem := ls.evictList.PushFront(&entry{
		key:   key,
		value: value,
		size:  size,
	})
	ls.lmu.Unlock()

	ls.totalBytes += size
	atomic.AddInt64(&ls.elemsCount, 1)
	ls.elems[key] = elem
	return evicted
}

func (ls *lruShard) purge() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	for k := range ls.elems {
		delete(ls.elems, k)
	}

	ls.totalBytes = 0
	atomic.StoreInt64(&ls.elemsCount, 0)

	ls.lmu.Lock()
	ls.evictList.Init()
	ls.lmu.Unlock()
}

func (ls *lruShard) remove(key uint64) (interface{}, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	elem, ok := ls.elems[key]
	if !ok {
		return nil, false
	}

	_, value := ls.removeElementUnderLock(elem)
	return value, true
}

func (ls *lruShard) removeOldestUnderLock() (uint64, interface{}, bool) {
	ls.lmu.Lock()
	elem := ls.evictList.Back()
	ls.lmu.Unlock()

	if elem != nil {
		k, v := ls.removeElementUnderLock(elem)
		return k, v, true
	} else {
		return 0, nil, false
	}
}

func (ls *lruShard) removeElementUnderLock(elem *list.Element) (uint64, interface{}) {
	ls.lmu.Lock()
	ls.evictList.Remove(elem)
	ls.lmu.Unlock()

	kv := elem.Value.(*entry)
	delete(ls.elems, kv.key)
	ls.totalBytes -= kv.size
	atomic.AddInt64(&ls.elemsCount, -1)
	return kv.key, kv.value
}

func (ls *lruShard) keys() []uint64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	keys := make([]uint64, 0, atomic.LoadInt64(&ls.elemsCount))
	for k := range ls.elems {
		keys = append(keys, k)
	}
	return keys
}
