package errclass

import (
	"errors"
	"testing"
)

func TestWrapAndClassOf(t *testing.T) {
	err := Wrap(ResourceExhaustion, errors.New("out of gas"))
	if ClassOf(err) != ResourceExhaustion {
		t.Fatalf("expected ResourceExhaustion, got %v", ClassOf(err))
	}
}

func TestClassOf_UnclassifiedErrorIsUnknown(t *testing.T) {
	if ClassOf(errors.New("plain")) != Unknown {
		t.Fatal("expected Unknown for an error never wrapped by this package")
	}
}

func TestWrap_NilErrorStaysNil(t *testing.T) {
	if Wrap(Configuration, nil) != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestClassifyRPCError(t *testing.T) {
	cases := []struct {
		message string
		want    Class
	}{
		{"nonce too low", NonceDesync},
		{"transaction underpriced", LogicalChainFailure},
		{"insufficient funds for gas * price + value", ResourceExhaustion},
		{"execution reverted", LogicalChainFailure},
		{"something else entirely", LogicalChainFailure},
	}
	for _, c := range cases {
		got := ClassOf(ClassifyRPCError(-32000, c.message))
		if got != c.want {
			t.Errorf("message %q: expected %v, got %v", c.message, c.want, got)
		}
	}
}

func TestClass_String(t *testing.T) {
	if TransientTransport.String() != "transient_transport" {
		t.Fatalf("unexpected string: %s", TransientTransport.String())
	}
	if Class(999).String() != "unknown" {
		t.Fatal("out-of-range class should stringify as unknown")
	}
}
