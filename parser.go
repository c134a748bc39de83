package twindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/denismitr/twindex/internal/shingle"
)

type cfgApplier func(jc *journalConfig) error

type metaApplier func(m M)

type parser struct {
	totalSize      int
	buf            [1024]byte
	currentCmdSize int
	totalCommands  int
	n              int
	currentLine    uint8
}

func (p *parser) parse(r *bufio.Reader, cb func(d deserializer) error) (int, error) {
	for {
		p.currentCmdSize = 0

		firstByte, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return p.totalSize, nil
			}

			return p.totalSize, errors.Wrap(ErrSourceFileReadFailed, err.Error())
		}

		if firstByte == 0 {
			p.n++
			continue
		}

		if err := r.UnreadByte(); err != nil {
			return p.totalSize, errors.Wrap(ErrSourceFileReadFailed, err.Error())
		}

		segments, err := p.resolveRespArrayFromLine(r)
		if err != nil {
			return p.totalSize, err
		}

		cmdCode, err := p.resolveRespCommandCode(r)
		if err != nil {
			return p.totalSize, err
		}

		switch cmdCode {
		case cfgCode:
			if err := p.parseCfgCommand(r, segments, cb); err != nil {
				return p.totalSize, err
			}
		case vocabCode:
			if err := p.parseVocabCommand(r, cb); err != nil {
				return p.totalSize, err
			}
		case docCode:
			if err := p.parseDocCommand(r, segments, cb); err != nil {
				return p.totalSize, err
			}
		case delCode:
			if err := p.parseDelCommand(r, cb); err != nil {
				return p.totalSize, err
			}
		}

		p.totalCommands++
		p.totalSize += p.currentCmdSize
	}
}

// parseCfgCommand - parses the artifact parameters command
func (p *parser) parseCfgCommand(r *bufio.Reader, segments int, cb func(d deserializer) error) error {
	var jc journalConfig

	for j := 0; j < segments-1; j++ {
		applier, err := p.resolveCfgFn(r)
		if err != nil {
			return err
		}

		if err := applier(&jc); err != nil {
			return err
		}
	}

	return cb(&cfgCmd{jc: jc})
}

// parseVocabCommand - parses a vocabulary pairs command
func (p *parser) parseVocabCommand(r *bufio.Reader, cb func(d deserializer) error) error {
	blob, err := p.resolveRespBlob(r)
	if err != nil {
		return err
	}

	if len(blob)%pairStride != 0 {
		return errors.Wrapf(
			ErrCommandInvalid,
			"vocabulary blob of %d bytes does not align to %d byte pairs",
			len(blob), pairStride,
		)
	}

	pairs := make([]shingle.Pair, len(blob)/pairStride)
	for i := range pairs {
		pairs[i].FP = binary.LittleEndian.Uint64(blob[i*pairStride:])
		pairs[i].Row = binary.LittleEndian.Uint32(blob[i*pairStride+8:])
	}

	return cb(&vocabCmd{pairs: pairs})
}

// parseDocCommand - parses a document upsert command
func (p *parser) parseDocCommand(r *bufio.Reader, segments int, cb func(d deserializer) error) error {
	key, err := p.resolveRespKey(r)
	if err != nil {
		return err
	}

	rows, err := p.resolveRespUint32Blob(r)
	if err != nil {
		return err
	}

	sig, err := p.resolveRespUint32Blob(r)
	if err != nil {
		return err
	}

	var meta M

	// subtracting command, key, rows and signature
	segments -= 4
	if segments > 0 {
		meta = make(M, segments)
	}

	for j := 0; j < segments; j++ {
		applier, err := p.resolveMetaFn(r)
		if err != nil {
			return err
		}
		applier(meta)
	}

	return cb(newDocEntry(string(key), rows, sig, meta))
}

// parseDelCommand - parses a document removal command
func (p *parser) parseDelCommand(r *bufio.Reader, cb func(d deserializer) error) error {
	key, err := p.resolveRespKey(r)
	if err != nil {
		return err
	}

	return cb(&deleteCmd{key: newDocKey(string(key))})
}

func (p *parser) resolveCfgFn(r *bufio.Reader) (cfgApplier, error) {
	prefix, args, err := p.resolveFnLine(r)
	if err != nil {
		return nil, err
	}

	switch prefix {
	case intCfgFn:
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return nil, errors.Errorf(
				"config function icf contains invalid integer %s at line #%d",
				args[1], p.currentLine,
			)
		}

		return func(jc *journalConfig) error {
			switch args[0] {
			case "k":
				jc.k = int(v)
			case "h":
				jc.h = int(v)
			case "r":
				jc.r = int(v)
			case "seed":
				jc.seed = v
			case "next":
				jc.next = uint32(v)
			default:
				return errors.Wrapf(ErrCommandInvalid, "unknown config parameter %s", args[0])
			}
			return nil
		}, nil
	case strCfgFn:
		return func(jc *journalConfig) error {
			switch args[0] {
			case "build":
				jc.build = args[1]
			default:
				return errors.Wrapf(ErrCommandInvalid, "unknown config parameter %s", args[0])
			}
			return nil
		}, nil
	default:
		return nil, errors.Wrapf(
			ErrCommandInvalid,
			"at line #%d function %s is not a config function",
			p.currentLine, prefix,
		)
	}
}

func (p *parser) resolveMetaFn(r *bufio.Reader) (metaApplier, error) {
	prefix, args, err := p.resolveFnLine(r)
	if err != nil {
		return nil, err
	}

	switch prefix {
	case boolMetaFn:
		return func(m M) { m[args[0]] = args[1] == "true" }, nil
	case strMetaFn:
		return func(m M) { m[args[0]] = args[1] }, nil
	case intMetaFn:
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, errors.Errorf(
				"meta function itg contains invalid integer %s at line #%d",
				args[1], p.currentLine,
			)
		}
		return func(m M) { m[args[0]] = v }, nil
	case floatMetaFn:
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return nil, errors.Errorf(
				"meta function ftg contains invalid float %s in line #%d",
				args[1], p.currentLine,
			)
		}
		return func(m M) { m[args[0]] = v }, nil
	default:
		panic(fmt.Sprintf("at line #%d function %s not supported", p.currentLine, prefix))
	}
}

func (p *parser) resolveFnLine(r *bufio.Reader) (string, []string, error) {
	p.currentLine++
	line, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil, io.ErrUnexpectedEOF
		}

		return "", nil, errors.Wrap(ErrCommandInvalid, err.Error())
	}

	if len(line) < 3 || line[0] != '+' {
		return "", nil, errors.Wrapf(
			ErrCommandInvalid,
			"line #%d - %s does not contain a valid function",
			p.currentLine, string(line),
		)
	}

	fn := string(line[1 : len(line)-2])
	prefix, args, err := resolveFnTypeAndArguments(fn)
	if err != nil {
		return "", nil, err
	}

	p.currentCmdSize += len(line)

	return prefix, args, nil
}

// resolveRespBlob - resolves a blob from serialization protocol
func (p *parser) resolveRespBlob(r *bufio.Reader) ([]byte, error) {
	p.currentLine++
	strInfoLine, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, errors.Wrapf(
			ErrCommandInvalid,
			"could not resolve blob at line #%d: %v",
			p.currentLine, err)
	}

	p.currentCmdSize += len(strInfoLine)

	if len(strInfoLine) == 0 || strInfoLine[0] != '$' {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - %s is invalid", p.currentLine, string(strInfoLine))
	}

	blobLen, err := strconv.Atoi(string(strInfoLine[1 : len(strInfoLine)-2]))
	if err != nil {
		return nil, errors.Wrap(ErrCommandInvalid, err.Error())
	}

	blob := make([]byte, blobLen+2)
	n, err := io.ReadFull(r, blob)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, errors.Wrap(ErrCommandInvalid, err.Error())
	}

	p.currentCmdSize += n

	if n-2 != blobLen {
		return nil, errors.Wrapf(ErrCommandInvalid, "line #%d - %s blob is invalid", p.currentLine, string(strInfoLine))
	}

	return blob[:blobLen], nil
}

func (p *parser) resolveRespUint32Blob(r *bufio.Reader) ([]uint32, error) {
	blob, err := p.resolveRespBlob(r)
	if err != nil {
		return nil, err
	}

	if len(blob)%4 != 0 {
		return nil, errors.Wrapf(
			ErrCommandInvalid,
			"blob of %d bytes does not align to uint32 values",
			len(blob),
		)
	}

	if len(blob) == 0 {
		return nil, nil
	}

	values := make([]uint32, len(blob)/4)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(blob[i*4:])
	}

	return values, nil
}

func (p *parser) resolveRespArrayFromLine(r *bufio.Reader) (int, error) {
	// read a command
	p.currentLine++
	line, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, io.ErrUnexpectedEOF
		}

		return 0, errors.Wrapf(ErrSourceFileReadFailed, "could not parse array at line #%d: %s", p.currentLine, err.Error())
	}

	// tolerate a bare crlf between commands
	if len(line) == 2 {
		p.currentLine++
		line, _ = r.ReadBytes('\n')
	}

	// should be \*\d{1,}\\r
	if len(line) < 2 || line[0] != '*' {
		return p.totalSize, errors.Wrapf(
			ErrCommandInvalid,
			"line #%d - %s should actually start with *",
			p.currentLine, string(line))
	}

	cmdBuf := p.buf[:0]
	for _, b := range line[1:] {
		if b >= '0' && b <= '9' {
			cmdBuf = append(cmdBuf, b)
		}
	}

	n, err := strconv.Atoi(string(cmdBuf))
	if err != nil {
		return 0, errors.Wrapf(ErrCommandInvalid, "could not parse command size at line #%d %v", p.currentLine, err)
	}

	p.currentCmdSize += len(line)

	return n, nil
}

func (p *parser) resolveRespCommandCode(r *bufio.Reader) (commandCode, error) {
	p.currentLine++
	line, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return invalidCode, io.ErrUnexpectedEOF
		}

		return invalidCode, err
	}

	if len(line) < 4 {
		return invalidCode, ErrCommandInvalid
	}

	if line[0] != '+' {
		return invalidCode, errors.Wrapf(ErrCommandInvalid, "at line #%d, any command should start with + symbol", p.currentLine)
	}

	p.currentCmdSize += len(line)

	if line[1] == 'c' && line[2] == 'f' && line[3] == 'g' {
		return cfgCode, nil
	}

	if line[1] == 'v' && line[2] == 'c' && line[3] == 'b' {
		return vocabCode, nil
	}

	if line[1] == 'd' && line[2] == 'o' && line[3] == 'c' {
		return docCode, nil
	}

	if line[1] == 'd' && line[2] == 'e' && line[3] == 'l' {
		return delCode, nil
	}

	return invalidCode, errors.Wrapf(ErrCommandInvalid, "at line #%d command [%s] is unknown", p.currentLine, string(line))
}

func (p *parser) resolveRespKey(r *bufio.Reader) ([]byte, error) {
	p.currentLine++
	strInfoLine, err := r.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, errors.Wrapf(
			ErrCommandInvalid,
			"could not resolve key: %s at line #%d",
			err.Error(), p.currentLine)
	}

	p.currentCmdSize += len(strInfoLine)

	if len(strInfoLine) == 0 || strInfoLine[0] != '$' {
		return nil, errors.Wrapf(
			ErrCommandInvalid,
			"line #%d - %s does not contain valid length",
			p.currentLine, string(strInfoLine))
	}

	keyLen, err := strconv.Atoi(string(strInfoLine[1 : len(strInfoLine)-2]))
	if err != nil {
		return nil, errors.Wrap(ErrCommandInvalid, err.Error())
	}

	key := make([]byte, keyLen+2)
	n, err := io.ReadFull(r, key)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, errors.Wrap(ErrCommandInvalid, err.Error())
	}

	p.currentCmdSize += n

	if n-2 != keyLen {
		return nil, errors.Wrapf(
			ErrCommandInvalid,
			"line #%d - %s has invalid key",
			p.currentLine, string(strInfoLine))
	}

	return key[:keyLen], nil
}
