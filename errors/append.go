package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If an error is a collection of errors, it is flattened into the result so
// that the result never contains nested groups.
func Append(errs ...error) error {
	res := &multiErr{}
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		if m, ok := e.(*multiErr); ok {
			res.errs = append(res.errs, m.errs...)
		} else {
			res.errs = append(res.errs, e)
		}
	}
	switch len(res.errs) {
	case 0:
		return nil
	case 1:
		return res.errs[0]
	}
	return res
}

// multiErr is a collection of errors returned by Append.
type multiErr struct {
	errs []error
}

func (m *multiErr) Error() string {
	points := make([]string, len(m.errs))
	for i, err := range m.errs {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s\n", len(m.errs), strings.Join(points, "\n\t"))
}

// Unpack implements the unpacker interface.
func (m *multiErr) Unpack() []error {
	return m.errs
}
