package semantic

import (
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
)

// encodePayload converts plain Go values into qdrant payload values.
// Nested maps become struct values so metadata-style payloads round-trip.
func encodePayload(fields map[string]any) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(fields))
	for k, v := range fields {
		payload[k] = encodeValue(v)
	}
	return payload
}

func encodeValue(v any) *pb.Value {
	switch tv := v.(type) {
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	case map[string]any:
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: encodePayload(tv)}}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

// decodePayload converts qdrant payload values back into plain Go values,
// preserving nested structs as map[string]any.
func decodePayload(payload map[string]*pb.Value) map[string]any {
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		fields[k] = decodeValue(v)
	}
	return fields
}

func decodeValue(v *pb.Value) any {
	switch kind := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return kind.StringValue
	case *pb.Value_IntegerValue:
		return kind.IntegerValue
	case *pb.Value_DoubleValue:
		return kind.DoubleValue
	case *pb.Value_BoolValue:
		return kind.BoolValue
	case *pb.Value_StructValue:
		return decodePayload(kind.StructValue.GetFields())
	case *pb.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = decodeValue(item)
		}
		return out
	default:
		return nil
	}
}
