package pixnet

import (
	"reflect"
	"testing"

	"github.com/unixpickle/serializer"
)

func TestActivationSerialize(t *testing.T) {
	a1 := Tanh
	a2 := Sigmoid
	a3 := ReLU
	data, err := serializer.SerializeAny(a1, a2, a3)
	if err != nil {
		t.Fatal(err)
	}
	var newA1, newA2, newA3 Activation
	err = serializer.DeserializeAny(data, &newA1, &newA2, &newA3)
	if err != nil {
		t.Fatal(err)
	}
	if newA1 != a1 {
		t.Error("Tanh failed")
	}
	if newA2 != a2 {
		t.Error("Sigmoid failed")
	}
	if newA3 != a3 {
		t.Error("ReLU failed")
	}
}

func TestActivationDeserializeUnknown(t *testing.T) {
	if _, err := DeserializeActivation([]byte{17}); err == nil {
		t.Error("expected error for unknown ID")
	}
	if _, err := DeserializeActivation([]byte{}); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestLeakyReLUSerialize(t *testing.T) {
	l := &LeakyReLU{Slope: 0.13}
	data, err := serializer.SerializeAny(l)
	if err != nil {
		t.Fatal(err)
	}
	var l1 *LeakyReLU
	if err := serializer.DeserializeAny(data, &l1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(l, l1) {
		t.Fatal("incorrect result")
	}
}

func TestDropoutSerialize(t *testing.T) {
	do := &Dropout{Enabled: true, KeepProb: 0.335}
	data, err := serializer.SerializeAny(do)
	if err != nil {
		t.Fatal(err)
	}
	var do1 *Dropout
	if err := serializer.DeserializeAny(data, &do1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(do, do1) {
		t.Fatal("incorrect result")
	}
}

func TestDebugSerialize(t *testing.T) {
	d := &Debug{ID: "down3", Depth: 4, PrintMean: true, PrintVariance: true}
	data, err := serializer.SerializeAny(d)
	if err != nil {
		t.Fatal(err)
	}
	var d1 *Debug
	if err := serializer.DeserializeAny(data, &d1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d, d1) {
		t.Fatal("incorrect result")
	}
}

func TestNetSerialize(t *testing.T) {
	net := Net{Tanh, &LeakyReLU{Slope: 0.2}, ReLU}
	data, err := serializer.SerializeAny(net)
	if err != nil {
		t.Fatal(err)
	}
	var net1 Net
	if err := serializer.DeserializeAny(data, &net1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(net, net1) {
		t.Fatal("networks not equal")
	}
}
