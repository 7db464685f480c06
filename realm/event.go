// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package realm

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/luxfi/indra/ids"
)

// ErrMalformedEvent is returned when decoding a CRDT-stored event entry
// that doesn't match any known encoding.
var ErrMalformedEvent = errors.New("realm: malformed event entry")

// EventKind tags the variant carried by an InterfaceEvent.
type EventKind uint8

const (
	EventMessage EventKind = iota
	EventMembershipChange
	EventCustom
)

// InterfaceEvent is one entry in a realm's event log.
type InterfaceEvent struct {
	Kind     EventKind
	Origin   ids.PlayerID
	Sequence uint64

	// Message payload, set when Kind == EventMessage.
	MessageBytes []byte

	// Membership-change payload, set when Kind == EventMembershipChange.
	MembershipAdded  bool
	MembershipMember ids.PlayerID

	// Custom payload, set when Kind == EventCustom.
	CustomKind  string
	CustomBytes []byte
}

// ID returns the event's per-origin identifier.
func (e InterfaceEvent) ID() ids.EventID {
	return ids.EventID{Origin: e.Origin, Sequence: e.Sequence}
}

// record is the realm package's internal view of one logged event:
// the event itself plus the realm-global insertion sequence used for
// events_since and pending-delivery bookkeeping, which is independent
// of the event's per-origin EventID.
type record struct {
	globalSeq uint64
	event     InterfaceEvent
}

func encodeEvent(e InterfaceEvent, globalSeq uint64) string {
	switch e.Kind {
	case EventMessage:
		return fmt.Sprintf("msg:%s:%d:%d:%s", e.Origin.String(), e.Sequence, globalSeq, base64.RawURLEncoding.EncodeToString(e.MessageBytes))
	case EventMembershipChange:
		added := 0
		if e.MembershipAdded {
			added = 1
		}
		return fmt.Sprintf("mem:%s:%d:%d:%d:%s", e.Origin.String(), e.Sequence, globalSeq, added, e.MembershipMember.String())
	default:
		return fmt.Sprintf("cus:%s:%d:%d:%s:%s", e.Origin.String(), e.Sequence, globalSeq,
			base64.RawURLEncoding.EncodeToString([]byte(e.CustomKind)), base64.RawURLEncoding.EncodeToString(e.CustomBytes))
	}
}

func decodeEvent(s string) (record, error) {
	parts := strings.SplitN(s, ":", 6)
	if len(parts) < 4 {
		return record{}, fmt.Errorf("%w: %q", ErrMalformedEvent, s)
	}
	origin, err := parsePlayerID(parts[1])
	if err != nil {
		return record{}, err
	}
	seq, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return record{}, fmt.Errorf("%w: bad sequence in %q", ErrMalformedEvent, s)
	}
	globalSeq, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return record{}, fmt.Errorf("%w: bad global sequence in %q", ErrMalformedEvent, s)
	}

	switch parts[0] {
	case "msg":
		if len(parts) != 5 {
			return record{}, fmt.Errorf("%w: %q", ErrMalformedEvent, s)
		}
		b, err := base64.RawURLEncoding.DecodeString(parts[4])
		if err != nil {
			return record{}, fmt.Errorf("%w: bad payload in %q", ErrMalformedEvent, s)
		}
		return record{globalSeq: globalSeq, event: InterfaceEvent{
			Kind: EventMessage, Origin: origin, Sequence: seq, MessageBytes: b,
		}}, nil
	case "mem":
		if len(parts) != 6 {
			return record{}, fmt.Errorf("%w: %q", ErrMalformedEvent, s)
		}
		member, err := parsePlayerID(parts[5])
		if err != nil {
			return record{}, err
		}
		return record{globalSeq: globalSeq, event: InterfaceEvent{
			Kind: EventMembershipChange, Origin: origin, Sequence: seq,
			MembershipAdded: parts[4] == "1", MembershipMember: member,
		}}, nil
	case "cus":
		fields := strings.SplitN(s, ":", 6)
		if len(fields) != 6 {
			return record{}, fmt.Errorf("%w: %q", ErrMalformedEvent, s)
		}
		kindBytes, err := base64.RawURLEncoding.DecodeString(fields[4])
		if err != nil {
			return record{}, fmt.Errorf("%w: bad custom kind in %q", ErrMalformedEvent, s)
		}
		b, err := base64.RawURLEncoding.DecodeString(fields[5])
		if err != nil {
			return record{}, fmt.Errorf("%w: bad payload in %q", ErrMalformedEvent, s)
		}
		return record{globalSeq: globalSeq, event: InterfaceEvent{
			Kind: EventCustom, Origin: origin, Sequence: seq,
			CustomKind: string(kindBytes), CustomBytes: b,
		}}, nil
	default:
		return record{}, fmt.Errorf("%w: unknown kind in %q", ErrMalformedEvent, s)
	}
}

func parsePlayerID(s string) (ids.PlayerID, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(ids.PlayerID{}) {
		return ids.PlayerID{}, fmt.Errorf("%w: bad player id %q", ErrMalformedEvent, s)
	}
	var pid ids.PlayerID
	copy(pid[:], b)
	return pid, nil
}
