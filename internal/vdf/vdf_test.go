package vdf

import (
	"bytes"
	"errors"
	"testing"
)

func TestApplyEdits_OutOfOrder(t *testing.T) {
	data := []byte(`"a" "1" "b" "2"`)
	out, err := applyEdits(data, []edit{
		{span: span{Start: 13, End: 14}, repl: []byte("9")},
		{span: span{Start: 5, End: 6}, repl: []byte("8")},
	})
	if err != nil {
		t.Fatalf("applyEdits: %v", err)
	}
	if want := `"a" "8" "b" "9"`; string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestApplyEdits_OverlapRejected(t *testing.T) {
	data := []byte(`"a" "1"`)
	_, err := applyEdits(data, []edit{
		{span: span{Start: 5, End: 6}, repl: []byte("8")},
		{span: span{Start: 5, End: 6}, repl: []byte("9")},
	})
	if !errors.Is(err, errEditOverlap) {
		t.Fatalf("err = %v, want errEditOverlap", err)
	}
}

func TestApplyEdits_NoEditsCopies(t *testing.T) {
	data := []byte(`"a" "1"`)
	out, err := applyEdits(data, nil)
	if err != nil {
		t.Fatalf("applyEdits: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("got %q, want input unchanged", out)
	}
	out[0] = 'x'
	if data[0] == 'x' {
		t.Error("output must not alias the input slice")
	}
}
