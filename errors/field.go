package errors

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// Field attaches err to a field of the validated value. It returns nil if
// err is nil.
//
// Field names follow Go naming. Paths into nested values are dot separated,
// with slice elements addressed by their index, for example
// SettledPays.1.SettledPayId. Use Nest to build such paths out of the
// errors returned by the Validate method of the nested value.
func Field(fieldName string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{parent: err, field: fieldName, desc: description}
}

// AppendField appends the error of a field to a (possibly nil) error list.
func AppendField(errorsOrNil error, fieldName string, fieldErrOrNil error) error {
	return Append(errorsOrNil, Field(fieldName, fieldErrOrNil, ""))
}

// Nest places the errors of a nested value under given path. Field errors
// keep their description and get the path prepended to their name, any
// other error becomes the error of the path itself.
func Nest(path string, err error) error {
	if isNilErr(err) {
		return nil
	}
	switch e := err.(type) {
	case *fieldError:
		return &fieldError{parent: e.parent, field: path + "." + e.field, desc: e.desc}
	case unpacker:
		var res error
		for _, inner := range e.Unpack() {
			res = Append(res, Nest(path, inner))
		}
		return res
	}
	return Field(path, err, "")
}

// Index returns the path of the i-th element of a slice field.
func Index(fieldName string, i int) string {
	return fieldName + "." + strconv.Itoa(i)
}

type fieldError struct {
	parent error
	field  string
	desc   string
}

func (err *fieldError) Error() string {
	if err.desc == "" {
		return fmt.Sprintf("field %q: %s", err.field, err.parent)
	}
	return fmt.Sprintf("field %q: %s: %s", err.field, err.desc, err.parent)
}

func (err *fieldError) Cause() error {
	return err.parent
}

func (err *fieldError) Field() string {
	return err.field
}

type fielder interface {
	Field() string
}

// FieldErrors returns the errors attached to given field path.
func FieldErrors(err error, fieldName string) []error {
	var res []error
	walkFields(err, func(f fielder) {
		if f.Field() == fieldName {
			res = append(res, f.(error))
		}
	})
	return res
}

// Fields returns the paths of all fields err carries an error for, in the
// order they were appended. A path is listed once.
func Fields(err error) []string {
	var (
		res  []string
		seen = make(map[string]bool)
	)
	walkFields(err, func(f fielder) {
		if name := f.Field(); !seen[name] {
			seen[name] = true
			res = append(res, name)
		}
	})
	return res
}

// walkFields calls fn with the outermost field error of every branch of
// err. Unpacked lists are searched element by element, wrapped errors
// through their cause.
func walkFields(err error, fn func(fielder)) {
	for !isNilErr(err) {
		if f, ok := err.(fielder); ok {
			fn(f)
			return
		}
		if u, ok := err.(unpacker); ok {
			for _, e := range u.Unpack() {
				walkFields(e, fn)
			}
			return
		}
		c, ok := err.(causer)
		if !ok {
			return
		}
		err = c.Cause()
	}
}
