package semantic

import (
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
)

func TestPayloadRoundTrip(t *testing.T) {
	in := map[string]any{
		"title":       "Red Summer Dress",
		"stock":       int64(12),
		"price":       49.99,
		"on_sale":     true,
		"metadata":    map[string]any{"product_id": "prod-1", "link": "https://shop.example/p/1"},
	}

	out := decodePayload(encodePayload(in))

	if out["title"] != "Red Summer Dress" {
		t.Errorf("title: got %v", out["title"])
	}
	if out["stock"] != int64(12) {
		t.Errorf("stock: got %v", out["stock"])
	}
	if out["price"] != 49.99 {
		t.Errorf("price: got %v", out["price"])
	}
	if out["on_sale"] != true {
		t.Errorf("on_sale: got %v", out["on_sale"])
	}
	meta, ok := out["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata: expected nested map, got %T", out["metadata"])
	}
	if meta["product_id"] != "prod-1" {
		t.Errorf("metadata.product_id: got %v", meta["product_id"])
	}
}

func TestEncodeValueFallback(t *testing.T) {
	// Unknown types are stringified rather than dropped.
	v := encodeValue([]byte("raw"))
	if v.GetStringValue() == "" {
		t.Error("expected fallback string value")
	}

	iv := encodeValue(7)
	if iv.GetIntegerValue() != 7 {
		t.Errorf("int: got %d", iv.GetIntegerValue())
	}
}

func TestDecodeValueList(t *testing.T) {
	list := &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{
		Values: []*pb.Value{
			{Kind: &pb.Value_StringValue{StringValue: "a"}},
			{Kind: &pb.Value_IntegerValue{IntegerValue: 2}},
		},
	}}}

	got, ok := decodeValue(list).([]any)
	if !ok {
		t.Fatalf("expected []any, got %T", decodeValue(list))
	}
	if len(got) != 2 || got[0] != "a" || got[1] != int64(2) {
		t.Errorf("unexpected list: %v", got)
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("prod-1")
	b := PointID("prod-1")
	c := PointID("prod-2")

	if a != b {
		t.Errorf("same product id must yield same point id: %s vs %s", a, b)
	}
	if a == c {
		t.Error("distinct product ids must yield distinct point ids")
	}
}
