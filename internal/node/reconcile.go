package node

import (
	"context"
	"errors"
	"fmt"

	"docstore/internal/config"
	"docstore/internal/document"
	"docstore/internal/quorum"
	"docstore/internal/repair"
	"docstore/internal/storage"
)

// Reconcile reads document id from every configured peer, merges all copies
// with the local one, stores the winner locally and read-repairs peers whose
// copy differs. Unreachable peers are left out of the merge; the call fails
// when fewer than ReadQuorum copies (the local one included) were collected.
func (n *Node) Reconcile(ctx context.Context, id string) (repair.ReconcileResult, error) {
	peers := n.cfg.RemotePeers()
	addrs := peerAddrs(peers)

	read := quorum.Do(ctx, peerIDs(peers), n.cfg.ReadQuorum-1, n.cfg.RepairTimeout,
		func(ctx context.Context, replica string) (document.Body, error) {
			return n.fetch(ctx, addrs[replica], id)
		})
	for replica, err := range read.Failed {
		n.logger.Warn("reconcile fetch failed", "doc_id", id, "replica", replica, "error", err)
	}
	if !read.Success {
		return repair.ReconcileResult{}, fmt.Errorf("reconcile %s: %w", id, read.Err)
	}

	bodies := []document.Body{n.store.Get(id)}
	replicaIDs := []string{n.cfg.NodeID}
	for _, v := range read.Values {
		bodies = append(bodies, v.Value)
		replicaIDs = append(replicaIDs, v.Replica)
	}

	result := repair.Reconcile(bodies, replicaIDs, n.docOpts...)
	if result.Winner == nil {
		return result, nil
	}

	if _, stale := result.Stale[n.cfg.NodeID]; stale {
		if _, err := n.store.Merge(result.Winner.Clone()); err != nil {
			return result, fmt.Errorf("reconcile %s: local merge: %w", id, err)
		}
	}

	peerStale := make(map[string]document.Body, len(result.Stale))
	for replica, body := range result.Stale {
		if replica != n.cfg.NodeID {
			peerStale[replica] = body
		}
	}
	n.repairer.Repair(ctx, result.Winner, peerStale, addrs)
	return result, nil
}

// fetch reads id from the peer at addr. A missing document is a nil body.
func (n *Node) fetch(ctx context.Context, addr, id string) (document.Body, error) {
	client, err := n.clients.GetClient(addr)
	if err != nil {
		return nil, err
	}
	body, err := client.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return body, err
}

func peerIDs(peers []config.Peer) []string {
	ids := make([]string, len(peers))
	for i, p := range peers {
		ids[i] = p.ID
	}
	return ids
}

func peerAddrs(peers []config.Peer) map[string]string {
	addrs := make(map[string]string, len(peers))
	for _, p := range peers {
		addrs[p.ID] = p.Addr
	}
	return addrs
}
