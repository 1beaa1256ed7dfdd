package node

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/protobuf/types/known/structpb"

	"docstore/internal/metrics"
	"docstore/internal/storage"
)

// Server implements the Documents gRPC service over a local store.
// Expected outcomes (not found, conflict, gone) are reported in the reply
// status; gRPC errors are reserved for transport failures.
type Server struct {
	store  storage.Store
	nodeID string
	logger *slog.Logger
}

// NewServer creates a new gRPC server instance.
func NewServer(store storage.Store, nodeID string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  store,
		nodeID: nodeID,
		logger: logger.With("node_id", nodeID),
	}
}

// Get handles Get requests. Tombstones are returned as documents.
func (s *Server) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()[fieldID].GetStringValue()
	s.logger.Debug("get request", "doc_id", id)

	if id == "" {
		return s.reply(MethodGet, reply{Status: StatusError, ErrorMessage: "id cannot be empty"})
	}

	body := s.store.Get(id)
	if body == nil {
		return s.reply(MethodGet, reply{Status: StatusNotFound})
	}
	return s.reply(MethodGet, reply{Status: StatusSuccess, Document: body})
}

// Put handles optimistic writes.
func (s *Server) Put(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc := req.GetFields()[fieldDocument].GetStructValue()
	if doc == nil {
		return s.reply(MethodPut, reply{Status: StatusError, ErrorMessage: "document cannot be empty"})
	}
	body := structToBody(doc)
	s.logger.Debug("put request", "doc_id", body.ID())

	stored, err := s.store.Put(body)
	if err != nil {
		return s.replyErr(MethodPut, body.ID(), err)
	}
	return s.reply(MethodPut, reply{Status: StatusSuccess, Document: stored})
}

// Delete handles Delete requests.
func (s *Server) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	id := fields[fieldID].GetStringValue()
	rev := fields[fieldRev].GetStringValue()
	global := fields[fieldGlobal].GetBoolValue()
	s.logger.Debug("delete request", "doc_id", id, "rev", rev, "global", global)

	if id == "" {
		return s.reply(MethodDelete, reply{Status: StatusError, ErrorMessage: "id cannot be empty"})
	}

	tomb, err := s.store.Delete(id, rev, global)
	if err != nil {
		return s.replyErr(MethodDelete, id, err)
	}
	return s.reply(MethodDelete, reply{Status: StatusSuccess, Document: tomb})
}

func (s *Server) reply(method string, r reply) (*structpb.Struct, error) {
	metrics.RecordRequest(method, r.Status)
	out, err := r.toStruct()
	if err != nil {
		s.logger.Error("encode reply failed", "method", method, "error", err)
		metrics.RecordRequest(method, StatusError)
		return (reply{Status: StatusError, ErrorMessage: err.Error()}).toStruct()
	}
	return out, nil
}

func (s *Server) replyErr(method, id string, err error) (*structpb.Struct, error) {
	status := statusFor(err)
	if status == StatusError {
		s.logger.Warn("request failed", "method", method, "doc_id", id, "error", err)
	}
	return s.reply(method, reply{Status: status, ErrorMessage: err.Error()})
}

// statusFor maps store errors to reply statuses.
func statusFor(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return StatusConflict
	case errors.Is(err, storage.ErrGone):
		return StatusGone
	default:
		return StatusError
	}
}

// errFor maps a reply status back to the store error it stands for.
func errFor(r reply) error {
	var sentinel error
	switch r.Status {
	case StatusSuccess:
		return nil
	case StatusNotFound:
		sentinel = storage.ErrNotFound
	case StatusConflict:
		sentinel = storage.ErrConflict
	case StatusGone:
		sentinel = storage.ErrGone
	default:
		if r.ErrorMessage == "" {
			return errors.New("request failed with status " + r.Status)
		}
		return errors.New(r.ErrorMessage)
	}
	if r.ErrorMessage == "" {
		return sentinel
	}
	return &remoteError{msg: r.ErrorMessage, err: sentinel}
}

// remoteError carries the peer's message while matching the sentinel with
// errors.Is.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }

var _ DocumentsServer = (*Server)(nil)
