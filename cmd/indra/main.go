// Copyright (C) 2025-2026, Indra Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Command indra is the reference CLI for the collaboration substrate:
// local identity management, contact invite codes, and a single-process
// demo that wires a handful of in-memory nodes together to show realm
// sync converging end to end.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/indra/config"
	"github.com/luxfi/indra/discovery"
	"github.com/luxfi/indra/ids"
	"github.com/luxfi/indra/invite"
	"github.com/luxfi/indra/log"
	"github.com/luxfi/indra/metrics"
	"github.com/luxfi/indra/network"
	"github.com/luxfi/indra/pqcrypto"
	"github.com/luxfi/indra/storage"
	"github.com/luxfi/indra/wire"

	"github.com/prometheus/client_golang/prometheus"
)

var rootCmd = &cobra.Command{
	Use:   "indra",
	Short: "Indra peer-to-peer collaboration substrate",
	Long: `indra manages a local participant in the collaboration substrate:
generating and holding an identity, minting contact and realm invite
codes, and running a one-shot in-process demo of realms converging
across several nodes.`,
}

func main() {
	rootCmd.PersistentFlags().String("data-dir", "", "override the node's data directory (defaults to INDRA_DATA_DIR or the platform config dir)")
	rootCmd.AddCommand(identityCmd(), inviteCmd(), demoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("data-dir")
	b := config.NewBuilder()
	if dir != "" {
		b = b.WithDataDir(dir)
	}
	return b.Build()
}

func identityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage this node's signing and encapsulation keys",
	}
	cmd.AddCommand(identityInitCmd(), identityWhoamiCmd())
	return cmd
}

func identityInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate and persist a new identity, if one doesn't already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			kf, err := storage.NewKeyFiles(cfg.DataDir)
			if err != nil {
				return err
			}
			if kf.HasIdentity() {
				return fmt.Errorf("identity already exists under %s", cfg.DataDir)
			}
			identity, err := pqcrypto.GenerateIdentity()
			if err != nil {
				return err
			}
			if err := kf.SaveIdentity(identity); err != nil {
				return err
			}
			kem, err := pqcrypto.GenerateKEMKeyPair()
			if err != nil {
				return err
			}
			if err := kf.SaveKEMKeyPair(kem); err != nil {
				return err
			}
			fmt.Printf("identity created: %s\n", network.DerivePlayerID(identity))
			return nil
		},
	}
}

func identityWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print this node's player ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			kf, err := storage.NewKeyFiles(cfg.DataDir)
			if err != nil {
				return err
			}
			identity, err := kf.LoadIdentity()
			if err != nil {
				return err
			}
			fmt.Println(network.DerivePlayerID(identity))
			return nil
		},
	}
}

func inviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Mint or inspect out-of-band invite codes",
	}
	cmd.AddCommand(inviteContactCmd(), inviteDecodeCmd())
	return cmd
}

func inviteContactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contact",
		Short: "Print this node's bech32m contact invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			kf, err := storage.NewKeyFiles(cfg.DataDir)
			if err != nil {
				return err
			}
			identity, err := kf.LoadIdentity()
			if err != nil {
				return err
			}
			code, err := invite.EncodeContact(invite.ContactInvite{
				Player:       network.DerivePlayerID(identity),
				VerifyingKey: identity.VerifyingKeyBytes(),
			})
			if err != nil {
				return err
			}
			fmt.Println(code)
			return nil
		},
	}
}

func inviteDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [code]",
		Short: "Decode a contact invite code and print the player it names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := invite.DecodeContact(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("player=%s verifying_key_len=%d\n", inv.Player, len(inv.VerifyingKey))
			return nil
		},
	}
}

// demoCmd spins up a handful of in-process nodes wired together with an
// in-memory topology and transport, creates a shared realm, sends a
// message, runs every node's sync driver for two seconds, and prints
// how many events each other node then holds — a single-binary way to
// see the substrate converge without any real networking.
func demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local multi-node sync demo entirely in-process",
		RunE: func(cmd *cobra.Command, args []string) error {
			peers, _ := cmd.Flags().GetInt("peers")
			return runDemo(peers)
		},
	}
	cmd.Flags().Int("peers", 3, "number of in-process participants")
	return cmd
}

// wiring is an in-memory synctask.Transport that dispatches a signed envelope straight
// to the recipient node's wire.Handler, bypassing any real network.
type wiring struct {
	nodes map[ids.PlayerID]*network.Node
}

func (w *wiring) Send(ctx context.Context, to ids.PlayerID, env *wire.SignedNetworkMessage) error {
	target, ok := w.nodes[to]
	if !ok {
		return fmt.Errorf("demo: no such peer %s", to)
	}
	msg, err := wire.VerifyAndDecode(env, wire.Strict)
	if err != nil {
		return err
	}
	from := network.DerivePlayerIDFromVerifyingKey(env.SenderVerifyingKey)
	return wire.Dispatch(target, from, msg)
}

func runDemo(peerCount int) error {
	if peerCount < 2 {
		peerCount = 2
	}
	topo := discovery.NewInMemory()
	w := &wiring{nodes: make(map[ids.PlayerID]*network.Node)}
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	var nodes []*network.Node
	var ctxs []context.Context
	for i := 0; i < peerCount; i++ {
		identity, err := pqcrypto.GenerateIdentity()
		if err != nil {
			return err
		}
		kem, err := pqcrypto.GenerateKEMKeyPair()
		if err != nil {
			return err
		}
		n, err := network.New(identity, kem, time.Now().UnixMilli(), w, topo, m, network.WithLogger(log.NoOp()))
		if err != nil {
			return err
		}
		w.nodes[n.Player()] = n
		nodes = append(nodes, n)
		ctxs = append(ctxs, discovery.WithSelf(context.Background(), n.Player()))
	}

	var others []ids.PlayerID
	for _, n := range nodes[1:] {
		others = append(others, n.Player())
	}
	r, err := nodes[0].CreateRealm(ctxs[0], others)
	if err != nil {
		return err
	}
	for i := 1; i < len(nodes); i++ {
		if _, err := nodes[i].CreateRealm(ctxs[i], append([]ids.PlayerID{nodes[0].Player()}, others...)); err != nil {
			return err
		}
	}

	evtID, err := nodes[0].SendMessage(r.ID, []byte("hello from the demo"))
	if err != nil {
		return err
	}
	fmt.Printf("node %s sent event %s in realm %s\n", nodes[0].Player().Short(), evtID, r.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var wg sync.WaitGroup
	for i, n := range nodes {
		wg.Add(1)
		go func(i int, n *network.Node) {
			defer wg.Done()
			n.Driver().Run(ctx)
		}(i, n)
	}
	wg.Wait()

	for _, n := range nodes[1:] {
		rn, ok := n.Realm(r.ID)
		if !ok {
			continue
		}
		fmt.Printf("node %s sees %d event(s) after sync\n", n.Player().Short(), len(rn.AllEvents()))
	}
	return nil
}
