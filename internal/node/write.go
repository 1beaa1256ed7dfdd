package node

import (
	"context"
	"fmt"

	"docstore/internal/document"
	"docstore/internal/quorum"
)

// Put writes body locally as an optimistic update and pushes the stored
// revision to every peer. The local write stands even when fewer than
// WriteQuorum copies were acknowledged; the returned error then wraps
// quorum.ErrNotMet.
func (n *Node) Put(ctx context.Context, body document.Body) (document.Body, error) {
	stored, err := n.store.Put(body)
	if err != nil {
		return nil, err
	}

	peers := n.cfg.RemotePeers()
	addrs := peerAddrs(peers)
	write := quorum.Do(ctx, peerIDs(peers), n.cfg.WriteQuorum-1, n.cfg.RepairTimeout,
		func(ctx context.Context, replica string) (struct{}, error) {
			client, err := n.clients.GetClient(addrs[replica])
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, client.Merge(ctx, stored)
		})
	for replica, err := range write.Failed {
		n.logger.Warn("replicate write failed", "doc_id", stored.ID(), "replica", replica, "error", err)
	}
	if !write.Success {
		return stored, fmt.Errorf("put %s: %w", stored.ID(), write.Err)
	}
	return stored, nil
}
