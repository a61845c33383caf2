package services

import (
	"errors"
	"net/http"
	"testing"
)

func TestWrapPreservesMarker(t *testing.T) {
	err := Wrap(ErrForbidden, "gate", "download", "package expired", nil)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected marker preserved, got %v", err)
	}
	if UserMessage(err) != "gate: download: package expired" {
		t.Fatalf("unexpected user message: %q", UserMessage(err))
	}
}

func TestWrapChainsCause(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(ErrNotFound, "store", "get package", "", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected marker in chain")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		marker error
		want   int
	}{
		{ErrValidation, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrProvider, http.StatusBadGateway},
		{ErrTransient, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(Wrap(tc.marker, "c", "op", "", nil)); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.marker, got, tc.want)
		}
	}
}
