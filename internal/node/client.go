package node

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"docstore/internal/document"
	"docstore/internal/repair"
)

// Client is a typed client for the Documents service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Get fetches a document. A missing document yields storage.ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (document.Body, error) {
	r, err := c.call(ctx, MethodGet, idRequest(id))
	if err != nil {
		return nil, err
	}
	return r.Document, nil
}

// Put performs an optimistic write and returns the stored body.
func (c *Client) Put(ctx context.Context, body document.Body) (document.Body, error) {
	req, err := documentRequest(body)
	if err != nil {
		return nil, err
	}
	r, err := c.call(ctx, MethodPut, req)
	if err != nil {
		return nil, err
	}
	return r.Document, nil
}

// Merge pushes a body, metadata included, into the peer's copy.
func (c *Client) Merge(ctx context.Context, body document.Body) error {
	_, err := c.MergeBody(ctx, body)
	return err
}

// MergeBody is Merge returning the peer's merged body.
func (c *Client) MergeBody(ctx context.Context, body document.Body) (document.Body, error) {
	req, err := documentRequest(body)
	if err != nil {
		return nil, err
	}
	r, err := c.call(ctx, MethodMerge, req)
	if err != nil {
		return nil, err
	}
	return r.Document, nil
}

// Delete writes a tombstone over rev ("" for the current revision).
func (c *Client) Delete(ctx context.Context, id, rev string, global bool) (document.Body, error) {
	r, err := c.call(ctx, MethodDelete, deleteRequest(id, rev, global))
	if err != nil {
		return nil, err
	}
	return r.Document, nil
}

func (c *Client) call(ctx context.Context, method string, req *structpb.Struct) (reply, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return reply{}, fmt.Errorf("%s failed: %w", method, err)
	}
	r := replyFromStruct(out)
	if err := errFor(r); err != nil {
		return reply{}, err
	}
	return r, nil
}

// ClientManager manages gRPC clients to peer nodes.
type ClientManager struct {
	mu      sync.RWMutex
	conns   map[string]*grpc.ClientConn
	clients map[string]*Client
	opts    []grpc.DialOption
}

// NewClientManager creates a new client manager. Extra dial options are
// appended to the insecure transport credentials.
func NewClientManager(opts ...grpc.DialOption) *ClientManager {
	return &ClientManager{
		conns:   make(map[string]*grpc.ClientConn),
		clients: make(map[string]*Client),
		opts:    append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...),
	}
}

// GetClient returns a client for the given node address.
// Creates a new connection if one doesn't exist.
func (cm *ClientManager) GetClient(addr string) (*Client, error) {
	cm.mu.RLock()
	client, exists := cm.clients[addr]
	cm.mu.RUnlock()

	if exists {
		return client, nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := cm.clients[addr]; exists {
		return client, nil
	}

	conn, err := grpc.NewClient(addr, cm.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	client = NewClient(conn)
	cm.conns[addr] = conn
	cm.clients[addr] = client
	return client, nil
}

// Merger adapts GetClient for read repair.
func (cm *ClientManager) Merger(addr string) (repair.Merger, error) {
	client, err := cm.GetClient(addr)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Close closes all client connections.
func (cm *ClientManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var firstErr error
	for addr, conn := range cm.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", addr, err)
		}
	}
	cm.conns = make(map[string]*grpc.ClientConn)
	cm.clients = make(map[string]*Client)
	return firstErr
}
