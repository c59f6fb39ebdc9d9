package assert

import (
	"math/big"
	"testing"

	"github.com/iov-one/simplex/errors"
)

func TestIsErr(t *testing.T) {
	cases := map[string]struct {
		ErrWant  error
		ErrGot   error
		WantFail bool
	}{
		"same error": {
			ErrWant:  errors.ErrEmpty,
			ErrGot:   errors.ErrEmpty,
			WantFail: false,
		},
		"compared to nil": {
			ErrWant:  nil,
			ErrGot:   errors.ErrEmpty,
			WantFail: true,
		},
		"both nil": {
			ErrWant:  nil,
			ErrGot:   nil,
			WantFail: false,
		},
		"wrapped": {
			ErrWant:  errors.ErrEmpty,
			ErrGot:   errors.Wrap(errors.ErrEmpty, "test"),
			WantFail: false,
		},
		"different kind": {
			ErrWant:  errors.ErrLedger,
			ErrGot:   errors.Wrap(errors.ErrTransport, "test"),
			WantFail: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			mock := &tmock{TB: t}
			IsErr(mock, tc.ErrWant, tc.ErrGot)
			failed := mock.failcalls > 0
			if tc.WantFail != failed {
				t.Fatalf("unexpected failed call state: %d failures", mock.failcalls)
			}
		})
	}
}

func TestFieldErrors(t *testing.T) {
	cases := map[string]struct {
		Err      error
		Name     string
		WantErr  *errors.Error
		WantFail bool
	}{
		"ensure a single error exists and is found": {
			Err:      errors.Field("peer", errors.ErrInput, "invalid address"),
			Name:     "peer",
			WantErr:  errors.ErrInput,
			WantFail: false,
		},
		"use nil to ensure no error was found": {
			Err:      errors.Field("peer", errors.ErrInput, "invalid address"),
			Name:     "token",
			WantErr:  nil,
			WantFail: false,
		},
		"use nil to fail when an error was found but was not expected": {
			Err:      errors.Field("peer", errors.ErrInput, "invalid address"),
			Name:     "peer",
			WantErr:  nil,
			WantFail: true,
		},
		"more than one error for a single field is not allowed": {
			Err: errors.Append(
				errors.Field("peer", errors.ErrInput, "first"),
				errors.Field("peer", errors.ErrInput, "second"),
			),
			Name:     "peer",
			WantErr:  errors.ErrInput,
			WantFail: true,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			mock := &tmock{TB: t}
			FieldError(mock, tc.Err, tc.Name, tc.WantErr)
			failed := mock.failcalls > 0
			if tc.WantFail != failed {
				t.Fatalf("unexpected failed call state: %d failures", mock.failcalls)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	mock := &tmock{TB: t}
	Amount(mock, "0", nil)
	Amount(mock, "50000000000000000", big.NewInt(50000000000000000))
	if mock.failcalls != 0 {
		t.Fatalf("unexpected failures: %d", mock.failcalls)
	}
	Amount(mock, "1", big.NewInt(2))
	if mock.failcalls != 1 {
		t.Fatalf("want one failure, got %d", mock.failcalls)
	}
}

// tmock mocks testing.TB and only counts failure calls. It ignores all other
// input.
type tmock struct {
	testing.TB
	failcalls int
}

func (t *tmock) Error(args ...interface{}) {
	t.TB.Log(args...)
	t.failcalls++
}

func (t *tmock) Errorf(s string, args ...interface{}) {
	t.TB.Logf(s, args...)
	t.failcalls++
}

func (t *tmock) Fatal(args ...interface{}) {
	t.TB.Log(args...)
	t.failcalls++
}

func (t *tmock) Fatalf(s string, args ...interface{}) {
	t.TB.Logf(s, args...)
	t.failcalls++
}
