package main

import (
	"reflect"
	"testing"

	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
)

func TestMergeProperties(t *testing.T) {
	base := []flow.Property{
		{Name: "Operation", Value: "HtmlText"},
		{Name: "A", Value: "0,0,1,1"},
	}
	overrides := []flow.Property{
		{Name: "Operation", Value: "RegionText"},
		{Name: "B", Value: "1,1,2,2"},
	}

	got := mergeProperties(base, overrides)
	want := []flow.Property{
		{Name: "Operation", Value: "RegionText"},
		{Name: "A", Value: "0,0,1,1"},
		{Name: "B", Value: "1,1,2,2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if base[0].Value != "HtmlText" {
		t.Error("mergeProperties modified its input")
	}
}

func TestSetFlags(t *testing.T) {
	var s setFlags
	if err := s.Set("TITLE=0,0,612,80"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("no-equals"); err == nil {
		t.Error("expected error without '='")
	}
	if len(s) != 1 || s[0].Name != "TITLE" || s[0].Value != "0,0,612,80" {
		t.Errorf("unexpected flags %v", s)
	}
}
