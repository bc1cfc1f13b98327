package document

// Merge applies src onto dst. Nested objects present on both sides are
// merged recursively; any other value in src replaces the one in dst.
// New keys are appended in src order. Values are copied, so src may be
// released after Merge returns.
func Merge(dst, src *Object) error {
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		if srcObj, ok := v.(*Object); ok {
			if dstObj, ok := dst.GetObject(k); ok {
				if err := Merge(dstObj, srcObj); err != nil {
					return err
				}
				continue
			}
		}
		c, err := cloneValue(dst.builder, v)
		if err != nil {
			return err
		}
		if err := dst.Set(k, c); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy of o allocated from b.
func Clone(b *Builder, o *Object) (*Object, error) {
	out, err := b.NewObject()
	if err != nil {
		return nil, err
	}
	if err := Merge(out, o); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneValue(b *Builder, v any) (any, error) {
	switch t := v.(type) {
	case *Object:
		return Clone(b, t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			c, err := cloneValue(b, e)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	default:
		return v, nil
	}
}
