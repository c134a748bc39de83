package twindex

import "github.com/pkg/errors"

// MetaApplier attaches descriptive metadata to a document on write.
// M literals and WithMeta builders both qualify.
type MetaApplier interface {
	applyTo(ent *docEntry) error
}

func (m M) applyTo(ent *docEntry) error {
	if ent.meta == nil && len(m) > 0 {
		ent.meta = make(M, len(m))
	}

	for n, v := range m {
		switch typedValue := v.(type) {
		case bool, string, int, float64:
			ent.meta[n] = typedValue
		case int64:
			ent.meta[n] = int(typedValue)
		default:
			return errors.Wrapf(ErrInvalidMetaType, "meta %s has unsupported type %T", n, v)
		}
	}

	return nil
}

func WithMeta() *MetaTagger {
	return &MetaTagger{m: make(M)}
}

type MetaTagger struct {
	err error
	m   M
}

func (mt *MetaTagger) Bool(name string, value bool) *MetaTagger {
	mt.m[name] = value
	return mt
}

func (mt *MetaTagger) Str(name, value string) *MetaTagger {
	mt.m[name] = value
	return mt
}

func (mt *MetaTagger) Int(name string, value int) *MetaTagger {
	mt.m[name] = value
	return mt
}

func (mt *MetaTagger) Float(name string, value float64) *MetaTagger {
	mt.m[name] = value
	return mt
}

func (mt *MetaTagger) Map(m M) *MetaTagger {
	for n, v := range m {
		switch typedValue := v.(type) {
		case bool, string, int, float64:
			mt.m[n] = typedValue
		default:
			mt.err = errors.Wrapf(ErrInvalidMetaType, "meta %s has unsupported type %T", n, v)
		}
	}

	return mt
}

func (mt *MetaTagger) applyTo(ent *docEntry) error {
	if mt.err != nil {
		return mt.err
	}

	return mt.m.applyTo(ent)
}
