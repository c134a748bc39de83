package twindex

import (
	"github.com/pkg/errors"

	"github.com/denismitr/twindex/internal/shingle"
)

type serializable interface {
	serialize(rs *respSerializer) error
}

type deserializer interface {
	deserialize(e *engine) error
}

type deleteCmd struct {
	key DocKey
}

func (cmd *deleteCmd) serialize(rs *respSerializer) error {
	return rs.serializeDelCommand(cmd)
}

func (cmd *deleteCmd) deserialize(e *engine) error {
	if _, err := e.removeUnderLock(cmd.key); err != nil {
		return errors.Wrapf(err, "could not replay delete of key %s", cmd.key.String())
	}

	return nil
}

// vocabCmd appends freshly minted fingerprint to row pairs. Replay must keep
// every row id exactly as minted, otherwise stored signatures go stale.
type vocabCmd struct {
	pairs []shingle.Pair
}

func (cmd *vocabCmd) serialize(rs *respSerializer) error {
	return rs.serializeVocabCommand(cmd)
}

func (cmd *vocabCmd) deserialize(e *engine) error {
	for _, p := range cmd.pairs {
		if err := e.vocab.Restore(p.FP, p.Row); err != nil {
			return errors.Wrapf(err, "could not restore vocabulary row %d", p.Row)
		}
	}

	return nil
}

// journalConfig freezes the fingerprinting parameters an artifact was built
// with. It is the first command of every journal. The next counter records
// the smallest vocabulary row never minted, so a vacuumed artifact does not
// reissue dropped row ids to new shingles.
type journalConfig struct {
	k     int
	h     int
	r     int
	seed  int64
	next  uint32
	build string
}

type cfgCmd struct {
	jc journalConfig
}

func (cmd *cfgCmd) serialize(rs *respSerializer) error {
	return rs.serializeCfgCommand(cmd)
}

func (cmd *cfgCmd) deserialize(e *engine) error {
	return e.adoptJournalConfig(cmd.jc)
}
