package errors

import "testing"

func TestFieldErrors(t *testing.T) {
	err := Append(
		Field("Amount", ErrAmount, "negative"),
		AppendField(nil, "Peer", ErrEmpty),
		Field("Ignored", nil, "no error"),
	)

	if errs := FieldErrors(err, "Amount"); len(errs) != 1 || !ErrAmount.Is(errs[0]) {
		t.Fatalf("unexpected Amount errors: %v", errs)
	}
	if errs := FieldErrors(err, "Peer"); len(errs) != 1 || !ErrEmpty.Is(errs[0]) {
		t.Fatalf("unexpected Peer errors: %v", errs)
	}
	if errs := FieldErrors(err, "Ignored"); len(errs) != 0 {
		t.Fatalf("want no errors, got %v", errs)
	}
}

func TestNest(t *testing.T) {
	inner := Append(
		Field("SettledPayId", ErrMsg, "short id"),
		ErrEmpty,
	)
	err := Append(
		Nest(Index("SettledPays", 1), inner),
		Nest("StateCosigned", nil),
		AppendField(nil, "BaseSeq", ErrInput),
	)

	if errs := FieldErrors(err, "SettledPays.1.SettledPayId"); len(errs) != 1 || !ErrMsg.Is(errs[0]) {
		t.Fatalf("unexpected nested errors: %v", errs)
	}
	if errs := FieldErrors(err, "SettledPays.1"); len(errs) != 1 || !ErrEmpty.Is(errs[0]) {
		t.Fatalf("unexpected path errors: %v", errs)
	}

	got := Fields(err)
	want := []string{"SettledPays.1.SettledPayId", "SettledPays.1", "BaseSeq"}
	if len(got) != len(want) {
		t.Fatalf("want fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want fields %v, got %v", want, got)
		}
	}

	if Fields(Wrap(ErrState, "no fields")) != nil {
		t.Fatal("want no fields")
	}
}
