package node

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"docstore/internal/document"
)

// Field names used in request and reply structs.
const (
	fieldID           = "id"
	fieldRev          = "rev"
	fieldGlobal       = "global"
	fieldDocument     = "document"
	fieldStatus       = "status"
	fieldErrorMessage = "error_message"
)

// bodyToStruct converts a document body to its protobuf form. Bodies go
// through their JSON encoding so nested Body values and numeric types are
// handled like any JSON client would send them.
func bodyToStruct(body document.Body) (*structpb.Struct, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return s, nil
}

// structToBody converts a protobuf struct back to a document body.
func structToBody(s *structpb.Struct) document.Body {
	if s == nil {
		return nil
	}
	return document.Body(s.AsMap())
}

// reply is the decoded form of every Documents response.
type reply struct {
	Status       string
	ErrorMessage string
	Document     document.Body
}

func (r reply) toStruct() (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldStatus: structpb.NewStringValue(r.Status),
	}}
	if r.ErrorMessage != "" {
		out.Fields[fieldErrorMessage] = structpb.NewStringValue(r.ErrorMessage)
	}
	if r.Document != nil {
		doc, err := bodyToStruct(r.Document)
		if err != nil {
			return nil, err
		}
		out.Fields[fieldDocument] = structpb.NewStructValue(doc)
	}
	return out, nil
}

func replyFromStruct(s *structpb.Struct) reply {
	fields := s.GetFields()
	return reply{
		Status:       fields[fieldStatus].GetStringValue(),
		ErrorMessage: fields[fieldErrorMessage].GetStringValue(),
		Document:     structToBody(fields[fieldDocument].GetStructValue()),
	}
}

func idRequest(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID: structpb.NewStringValue(id),
	}}
}

func documentRequest(body document.Body) (*structpb.Struct, error) {
	doc, err := bodyToStruct(body)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &structpb.Struct{}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldDocument: structpb.NewStructValue(doc),
	}}, nil
}

func deleteRequest(id, rev string, global bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:     structpb.NewStringValue(id),
		fieldRev:    structpb.NewStringValue(rev),
		fieldGlobal: structpb.NewBoolValue(global),
	}}
}
