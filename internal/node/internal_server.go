package node

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// Merge handles replica ingest: the document, including its "_meta"
// conflicts and history, is merged unconditionally. Read repair and peer
// reconciliation use it to converge replicas.
func (s *Server) Merge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	doc := req.GetFields()[fieldDocument].GetStructValue()
	if doc == nil {
		return s.reply(MethodMerge, reply{Status: StatusError, ErrorMessage: "document cannot be empty"})
	}
	body := structToBody(doc)
	rev, _ := body.Rev()
	s.logger.Debug("merge request", "doc_id", body.ID(), "rev", rev.String())

	merged, err := s.store.Merge(body)
	if err != nil {
		return s.replyErr(MethodMerge, body.ID(), err)
	}
	return s.reply(MethodMerge, reply{Status: StatusSuccess, Document: merged})
}
