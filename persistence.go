package twindex

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"github.com/pkg/errors"
)

var ErrArtifactWriteFailed = errors.New("artifact write failed")
var ErrSourceFileReadFailed = errors.New("source file read failed")
var ErrCommandInvalid = errors.New("command invalid")
var ErrStorageFailed = errors.New("storage error")
var ErrInternalError = errors.New("internal error")

type PersistenceStrategy string

type commandCode int8

const (
	boolMetaFn  = "btg"
	strMetaFn   = "stg"
	intMetaFn   = "itg"
	floatMetaFn = "ftg"
	intCfgFn    = "icf"
	strCfgFn    = "scf"
)

const (
	invalidCode commandCode = iota
	cfgCode
	vocabCode
	docCode
	delCode
)

const (
	Async PersistenceStrategy = "async"
	Sync  PersistenceStrategy = "sync"
)

var gzipMagic = []byte{0x1f, 0x8b}

type persistence struct {
	mu       sync.RWMutex
	strategy PersistenceStrategy
	f        *os.File
	flushes  int
	cursor   int
}

func newPersistence(
	filepath string,
	strategy PersistenceStrategy,
	truncateFileOnOpen bool,
) (*persistence, error) {
	flags := os.O_CREATE | os.O_RDWR
	if truncateFileOnOpen {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(filepath, flags, 0666)
	if err != nil {
		return nil, err
	}

	p := &persistence{
		f:        f,
		strategy: strategy,
	}

	if !truncateFileOnOpen {
		if err := p.inflateIfCompressed(); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	return p, nil
}

// inflateIfCompressed swaps a gzip compressed artifact, such as one produced
// by export, for its plain journal so appends can continue.
func (p *persistence) inflateIfCompressed() error {
	head := make([]byte, 2)
	if _, err := p.f.ReadAt(head, 0); err != nil {
		if err == io.EOF {
			return nil
		}

		return errors.Wrap(ErrSourceFileReadFailed, err.Error())
	}

	if !bytes.Equal(head, gzipMagic) {
		return nil
	}

	if _, err := p.f.Seek(0, 0); err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not rewind %s: %s", p.f.Name(), err.Error())
	}

	zr, err := pgzip.NewReader(bufio.NewReader(p.f))
	if err != nil {
		return errors.Wrapf(ErrSourceFileReadFailed, "could not read compressed artifact %s: %s", p.f.Name(), err.Error())
	}

	name := p.f.Name()
	t, err := renameio.TempFile("", name)
	if err != nil {
		return errors.Wrapf(err, "could not create temp file to inflate %s", name)
	}
	defer func() {
		_ = t.Cleanup()
	}()

	if _, err := io.Copy(t, zr); err != nil {
		return errors.Wrapf(err, "could not inflate artifact %s", name)
	}

	if err := zr.Close(); err != nil {
		return errors.Wrapf(err, "could not finish inflating artifact %s", name)
	}

	if err := t.CloseAtomicallyReplace(); err != nil {
		return errors.Wrapf(err, "could not swap inflated artifact %s", name)
	}

	if err := p.f.Close(); err != nil {
		return errors.Wrapf(err, "could not close compressed artifact %s", name)
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return errors.Wrapf(err, "could not reopen inflated artifact %s", name)
	}

	p.f = f

	return nil
}

func (p *persistence) close() (err error) {
	p.mu.Lock()
	defer func() {
		p.f = nil
		p.mu.Unlock()
	}()

	if syncErr := p.f.Sync(); syncErr != nil {
		err = errors.Wrap(syncErr, "could not sync artifact file")
	}

	if closeErr := p.f.Close(); closeErr != nil && err == nil {
		err = errors.Wrap(closeErr, "could not close artifact file")
	}

	return
}

func (p *persistence) load(cb func(d deserializer) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := p.f.Stat()
	if err != nil {
		return errors.Wrapf(err, "could not collect file %s stats", p.f.Name())
	}

	prs := &parser{}

	r := bufio.NewReader(p.f)

	n, err := prs.parse(r, cb)
	if err != nil {
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}

		// a torn trailing command is dropped, everything before it survives
		if tErr := p.f.Truncate(int64(n)); tErr != nil {
			return errors.Wrapf(tErr, "could not truncate file after parse error")
		}
	}

	pos, err := p.f.Seek(int64(n), 0)
	if err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not move the cursor: %s", err.Error())
	}

	p.cursor = int(pos)

	return nil
}

func (p *persistence) save(commands []serializable) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var rs respSerializer

	for _, cmd := range commands {
		if err := cmd.serialize(&rs); err != nil {
			return err
		}
	}

	return p.writeUnderLock(&rs.buf)
}

func (p *persistence) writeUnderLock(buf *bytes.Buffer) error {
	n, err := p.f.Write(buf.Bytes())
	if err != nil {
		if n > 0 {
			// partial write occurred, must rollback the file
			pos, seekErr := p.f.Seek(-int64(n), 1)
			if seekErr != nil {
				return errors.Wrapf(
					ErrInternalError,
					"could not seek file %s to -%d: %v",
					p.f.Name(), n, seekErr,
				)
			}

			if err := p.f.Truncate(pos); err != nil {
				return errors.Wrapf(err, "could not truncate file %s", p.f.Name())
			}
		}

		_ = p.f.Sync()
		return errors.Wrap(ErrArtifactWriteFailed, err.Error())
	}

	if p.strategy == Sync {
		_ = p.f.Sync()
	}

	p.flushes++
	p.cursor += buf.Len()
	return nil
}

func (p *persistence) sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.f.Sync(); err != nil {
		return errors.Wrapf(err, "cannot sync file %s", p.f.Name())
	}
	return nil
}

func (p *persistence) writeAndSwap(rs *respSerializer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tmpFName := p.f.Name() + ".tmp"
	tmpF, err := os.Create(tmpFName)
	if err != nil {
		return errors.Wrapf(err, "could not create %s file for vacuum", tmpFName)
	}

	defer func() {
		_ = tmpF.Close()
		_ = os.RemoveAll(tmpFName)
	}()

	expectedLen := rs.buf.Len()
	n, err := tmpF.Write(rs.buf.Bytes())
	if err != nil {
		return errors.Wrapf(err, "vacuum could not write into %s file", tmpFName)
	}

	if n != expectedLen {
		return errors.Wrapf(ErrArtifactWriteFailed, "vacuum could not write all the data into %s file", tmpFName)
	}

	oldName := p.f.Name()
	if err := p.f.Close(); err != nil {
		return errors.Wrapf(err, "vacuum could not close %s file to swap it", oldName)
	}

	if rnErr := os.Rename(tmpFName, oldName); rnErr != nil {
		resultErr := errors.Wrapf(rnErr, "vacuum could not swap %s file for %s", oldName, tmpFName)
		p.f, err = os.OpenFile(oldName, os.O_CREATE|os.O_RDWR, 0666)
		if err != nil {
			return errors.Wrapf(resultErr, "and could not reopen old file: %s", err.Error())
		}
		return resultErr
	}

	p.f, err = os.OpenFile(oldName, os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return errors.Wrapf(err, "could not reopen swapped file: %s", oldName)
	}

	pos, err := p.f.Seek(int64(n), 0)
	if err != nil {
		return errors.Wrapf(ErrStorageFailed, "could not move the cursor in file %s: %s", oldName, err.Error())
	}

	p.cursor = int(pos)

	return nil
}

// exportTo writes a gzip compressed snapshot, atomically replacing dst.
func (p *persistence) exportTo(dst string, rs *respSerializer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return exportSnapshot(dst, rs)
}

// exportSnapshot does not need an open artifact, in memory indexes export
// through it directly.
func exportSnapshot(dst string, rs *respSerializer) error {
	t, err := renameio.TempFile("", dst)
	if err != nil {
		return errors.Wrapf(err, "could not create temp file for export to %s", dst)
	}
	defer func() {
		_ = t.Cleanup()
	}()

	zw := pgzip.NewWriter(t)
	if _, err := io.Copy(zw, bytes.NewReader(rs.buf.Bytes())); err != nil {
		return errors.Wrapf(err, "could not compress export to %s", dst)
	}

	if err := zw.Close(); err != nil {
		return errors.Wrapf(err, "could not finish compressed export to %s", dst)
	}

	if err := t.CloseAtomicallyReplace(); err != nil {
		return errors.Wrapf(err, "could not finalize export to %s", dst)
	}

	return nil
}

func resolveFnTypeAndArguments(expression string) (prefix string, args []string, err error) {
	for _, fn := range []string{boolMetaFn, strMetaFn, intMetaFn, floatMetaFn, intCfgFn, strCfgFn} {
		if strings.HasPrefix(expression, fn) {
			prefix = fn
			break
		}
	}

	if prefix == "" {
		err = errors.Wrapf(ErrCommandInvalid, "expression %s is invalid", expression)
		return
	}

	argsExp := strings.TrimPrefix(expression, prefix+"(")
	argsExp = strings.TrimSuffix(argsExp, ")")
	args = strings.SplitN(argsExp, ",", 2)

	if len(args) < 2 {
		err = errors.Wrapf(ErrCommandInvalid, "expression %s misses arguments", expression)
		return
	}

	return
}
