// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package realm

import (
	"sort"

	"github.com/zeebo/blake3"

	"github.com/luxfi/indra/ids"
)

// RandomID draws a realm ID with no canonical derivation.
func RandomID() (ids.InterfaceID, error) {
	return ids.RandomInterfaceID()
}

// PeerSetID derives a realm ID from a set of member player IDs. It is
// stable under permutation and duplication of the input: two callers
// with the same logical member set always converge on the same ID.
func PeerSetID(peers []ids.PlayerID) ids.InterfaceID {
	sorted := dedupSort(peers)
	h := blake3.New()
	h.Write([]byte("realm-peers-v1:"))
	for _, p := range sorted {
		h.Write(p[:])
	}
	var id ids.InterfaceID
	copy(id[:], h.Sum(nil))
	return id
}

// HomeRealmID derives a player's personal home realm ID.
func HomeRealmID(pid ids.PlayerID) ids.InterfaceID {
	return personalID("home-realm:", pid)
}

// InboxRealmID derives a player's personal inbox realm ID, the realm
// that receives incoming connection requests.
func InboxRealmID(pid ids.PlayerID) ids.InterfaceID {
	return personalID("inbox:", pid)
}

func personalID(domainTag string, pid ids.PlayerID) ids.InterfaceID {
	h := blake3.New()
	h.Write([]byte(domainTag))
	h.Write(pid[:])
	var id ids.InterfaceID
	copy(id[:], h.Sum(nil))
	return id
}

func dedupSort(peers []ids.PlayerID) []ids.PlayerID {
	seen := make(map[ids.PlayerID]struct{}, len(peers))
	out := make([]ids.PlayerID, 0, len(peers))
	for _, p := range peers {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		for k := 0; k < len(out[i]); k++ {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}
