package faults

import (
	"errors"
	"testing"
)

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{InvalidInput("amount must be positive"), KindInvalidInput},
		{Unauthorized("caller %s", "0x1"), KindUnauthorized},
		{InvalidState("emission active"), KindInvalidState},
		{Upstream("transfer", errors.New("insufficient balance")), KindUpstream},
		{errors.New("plain"), KindUnknown},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("kind mismatch for %v: %s != %s", tc.err, got, tc.want)
		}
	}
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("insufficient allowance")
	err := Upstream("transfer in", cause)
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, cause) {
		t.Fatalf("upstream error lost a cause: %v", err)
	}
}

func TestUpstreamPreservesNestedKind(t *testing.T) {
	nested := InvalidState("emission not active")
	if err := Upstream("reentrant call", nested); err != nested {
		t.Fatalf("nested kind rewrapped: %v", err)
	}
	if Upstream("noop", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
