package pmode

import (
	"fmt"
	"strings"
)

// KeySeparator joins the components of a Key. Entity names never contain it.
const KeySeparator = ":"

// Key identifies the resolved entities of one exchange by name, in the order
// sender, receiver, service, action, agreement, leg. Agreement may be empty.
type Key struct {
	Sender    string
	Receiver  string
	Service   string
	Action    string
	Agreement string
	Leg       string
}

func (k Key) String() string {
	return strings.Join([]string{k.Sender, k.Receiver, k.Service, k.Action, k.Agreement, k.Leg}, KeySeparator)
}

// ParseKey splits a key produced by Key.String.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, KeySeparator)
	if len(parts) != 6 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	k := Key{
		Sender:    parts[0],
		Receiver:  parts[1],
		Service:   parts[2],
		Action:    parts[3],
		Agreement: parts[4],
		Leg:       parts[5],
	}
	if k.Sender == "" || k.Receiver == "" || k.Service == "" || k.Action == "" || k.Leg == "" {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return k, nil
}
