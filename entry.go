package twindex

type docEntry struct {
	key  DocKey
	rows []uint32
	sig  []uint32
	meta M
}

func newDocEntry(key string, rows, sig []uint32, meta M) *docEntry {
	return &docEntry{key: newDocKey(key), rows: rows, sig: sig, meta: meta}
}

func (ent *docEntry) empty() bool {
	return len(ent.rows) == 0
}

func (ent *docEntry) metaCount() int {
	return len(ent.meta)
}

func (ent *docEntry) serialize(rs *respSerializer) error {
	return rs.serializeDocCommand(ent)
}

// replayed doc commands always replace, the journal may carry several
// generations of the same key
func (ent *docEntry) deserialize(e *engine) error {
	_, err := e.putUnderLock(ent, true)
	return err
}
