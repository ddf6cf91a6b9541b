package main

import (
	"reflect"
	"testing"
)

func TestBuildEvent(t *testing.T) {
	ev, err := buildEvent("update", "sentinel", "i1, i2", "data,thumb", "ingest")
	if err != nil {
		t.Fatal(err)
	}
	if ev.Version != 1 || ev.Op != "update" || ev.Collection != "sentinel" {
		t.Fatalf("event = %+v", ev)
	}
	if !reflect.DeepEqual(ev.ItemIDs, []string{"i1", "i2"}) {
		t.Fatalf("item ids = %v", ev.ItemIDs)
	}
	if !reflect.DeepEqual(ev.Assets, []string{"data", "thumb"}) {
		t.Fatalf("assets = %v", ev.Assets)
	}
	if ev.TS.IsZero() || ev.Source != "ingest" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestBuildEventRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name       string
		op         string
		collection string
		items      string
	}{
		{"unknown op", "upsert", "c", "i1"},
		{"empty collection", "update", "", "i1"},
		{"no items", "delete", "c", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := buildEvent(tc.op, tc.collection, tc.items, "data", ""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
