package twindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/denismitr/twindex/internal/shingle"
)

var ErrInvalidMetaType = errors.New("invalid meta value type")

const (
	cfgCommand   = "cfg"
	vocabCommand = "vcb"
	docCommand   = "doc"
	delCommand   = "del"
)

const pairStride = 12 // 8 byte fingerprint + 4 byte row

type respSerializer struct {
	buf bytes.Buffer
}

func (rs *respSerializer) serializeCfgCommand(cmd *cfgCmd) error {
	writeRespArray(7, &rs.buf)
	writeRespSimpleString([]byte(cfgCommand), &rs.buf)
	writeRespIntCfg("k", cmd.jc.k, &rs.buf)
	writeRespIntCfg("h", cmd.jc.h, &rs.buf)
	writeRespIntCfg("r", cmd.jc.r, &rs.buf)
	writeRespInt64Cfg("seed", cmd.jc.seed, &rs.buf)
	writeRespInt64Cfg("next", int64(cmd.jc.next), &rs.buf)
	writeRespStrCfg("build", cmd.jc.build, &rs.buf)

	return nil
}

func (rs *respSerializer) serializeVocabCommand(cmd *vocabCmd) error {
	writeRespArray(2, &rs.buf)
	writeRespSimpleString([]byte(vocabCommand), &rs.buf)
	writeRespPairsBlob(cmd.pairs, &rs.buf)

	return nil
}

func (rs *respSerializer) serializeDocCommand(ent *docEntry) error {
	writeRespArray(4+ent.metaCount(), &rs.buf)
	writeRespSimpleString([]byte(docCommand), &rs.buf)
	writeRespKeyString([]byte(ent.key.String()), &rs.buf)
	writeRespUint32Blob(ent.rows, &rs.buf)
	writeRespUint32Blob(ent.sig, &rs.buf)

	if ent.metaCount() > 0 {
		for _, name := range sortedMetaNames(ent.meta) {
			switch v := ent.meta[name].(type) {
			case int:
				writeRespIntMeta(name, v, &rs.buf)
			case bool:
				writeRespBoolMeta(name, v, &rs.buf)
			case string:
				writeRespStrMeta(name, v, &rs.buf)
			case float64:
				writeRespFloatMeta(name, v, &rs.buf)
			default:
				return errors.Wrapf(ErrInvalidMetaType, "%T under name %s", ent.meta[name], name)
			}
		}
	}

	return nil
}

func (rs *respSerializer) serializeDelCommand(cmd *deleteCmd) error {
	writeRespArray(2, &rs.buf)
	writeRespSimpleString([]byte(delCommand), &rs.buf)
	writeRespKeyString([]byte(cmd.key.String()), &rs.buf)

	return nil
}

func sortedMetaNames(m M) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeRespArray(segments int, buf *bytes.Buffer) int {
	buf.WriteRune('*')
	s := strconv.FormatInt(int64(segments), 10)
	buf.WriteString(s)
	buf.WriteRune('\r')
	buf.WriteRune('\n')

	return 3 + len(s)
}

func writeRespBoolMeta(name string, v bool, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%v)", boolMetaFn, name, v)), buf)
}

func writeRespStrMeta(name, v string, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%s)", strMetaFn, name, v)), buf)
}

func writeRespIntMeta(name string, v int, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%d)", intMetaFn, name, v)), buf)
}

func writeRespFloatMeta(name string, v float64, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%v)", floatMetaFn, name, v)), buf)
}

func writeRespIntCfg(name string, v int, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%d)", intCfgFn, name, v)), buf)
}

func writeRespInt64Cfg(name string, v int64, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%d)", intCfgFn, name, v)), buf)
}

func writeRespStrCfg(name, v string, buf *bytes.Buffer) int {
	return writeRespFunc([]byte(fmt.Sprintf("%s(%s,%s)", strCfgFn, name, v)), buf)
}

func writeRespSimpleString(b []byte, buf *bytes.Buffer) int {
	buf.WriteRune('+')
	buf.Write(b)
	buf.WriteRune('\r')
	buf.WriteRune('\n')
	return 3 + len(b)
}

func writeRespKeyString(b []byte, buf *bytes.Buffer) int {
	buf.WriteRune('$')
	l, _ := buf.Write([]byte(strconv.FormatInt(int64(len(b)), 10)))
	buf.WriteRune('\r')
	buf.WriteRune('\n')
	n, _ := buf.Write(b)
	buf.WriteRune('\r')
	buf.WriteRune('\n')
	return 4 + l + n
}

func writeRespFunc(fn []byte, buf *bytes.Buffer) int {
	buf.WriteRune('+')
	buf.Write(fn)
	buf.WriteRune('\r')
	buf.WriteRune('\n')

	return 3 + len(fn)
}

func writeRespBlob(blob []byte, buf *bytes.Buffer) (int, int) {
	buf.WriteRune('$')
	l := []byte(strconv.FormatInt(int64(len(blob)), 10))
	buf.Write(l)
	buf.WriteRune('\r')
	buf.WriteRune('\n')
	buf.Write(blob)
	buf.WriteRune('\r')
	buf.WriteRune('\n')

	prefix := 1 + len(l) + 2
	total := prefix + len(blob) + 2
	return prefix, total
}

func writeRespUint32Blob(values []uint32, buf *bytes.Buffer) int {
	blob := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(blob[i*4:], v)
	}

	_, total := writeRespBlob(blob, buf)
	return total
}

func writeRespPairsBlob(pairs []shingle.Pair, buf *bytes.Buffer) int {
	blob := make([]byte, pairStride*len(pairs))
	for i, p := range pairs {
		binary.LittleEndian.PutUint64(blob[i*pairStride:], p.FP)
		binary.LittleEndian.PutUint32(blob[i*pairStride+8:], p.Row)
	}

	_, total := writeRespBlob(blob, buf)
	return total
}
