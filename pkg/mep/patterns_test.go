package mep

import (
	"testing"
)

func TestMEPConstants(t *testing.T) {
	if OneWay != "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay" {
		t.Errorf("unexpected OneWay URI: %s", OneWay)
	}
	if TwoWay != "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/twoWay" {
		t.Errorf("unexpected TwoWay URI: %s", TwoWay)
	}
}

func TestParseMEP(t *testing.T) {
	tests := []struct {
		in      string
		want    MEP
		wantErr bool
	}{
		{"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/oneWay", OneWay, false},
		{"oneway", OneWay, false},
		{" twoWay ", TwoWay, false},
		{"threeWay", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMEP(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMEP(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMEP(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseBinding(t *testing.T) {
	tests := []struct {
		in      string
		want    Binding
		wantErr bool
	}{
		{"push", Push, false},
		{"PULL", Pull, false},
		{"http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/pushAndPull", PushAndPull, false},
		{"pullAndPush", PullAndPush, false},
		{"sync", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBinding(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBinding(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBinding(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestBindingPullsLeg(t *testing.T) {
	tests := []struct {
		binding    Binding
		first      bool
		second     bool
		isPull     bool
		compatible MEP
	}{
		{Push, false, false, false, OneWay},
		{Pull, true, false, true, OneWay},
		{PushAndPush, false, false, false, TwoWay},
		{PushAndPull, false, true, true, TwoWay},
		{PullAndPush, true, false, true, TwoWay},
	}
	for _, tt := range tests {
		t.Run(tt.binding.Short(), func(t *testing.T) {
			if got := tt.binding.PullsLeg(0); got != tt.first {
				t.Errorf("PullsLeg(0) = %v, want %v", got, tt.first)
			}
			if got := tt.binding.PullsLeg(1); got != tt.second {
				t.Errorf("PullsLeg(1) = %v, want %v", got, tt.second)
			}
			if got := tt.binding.IsPull(); got != tt.isPull {
				t.Errorf("IsPull() = %v, want %v", got, tt.isPull)
			}
			if !tt.binding.Compatible(tt.compatible) {
				t.Errorf("expected %s to carry %s", tt.binding, tt.compatible)
			}
		})
	}
}

func TestMEPLegs(t *testing.T) {
	if OneWay.Legs() != 1 {
		t.Errorf("expected 1 leg for oneWay, got %d", OneWay.Legs())
	}
	if TwoWay.Legs() != 2 {
		t.Errorf("expected 2 legs for twoWay, got %d", TwoWay.Legs())
	}
}
