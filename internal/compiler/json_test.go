package compiler

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNamespaceJSON(t *testing.T) {
	ns := compile(t, callChainSource, Options{})
	data, err := json.Marshal(ns)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded struct {
		Workflow struct {
			Name   string `json:"name"`
			Locked bool   `json:"locked"`
			Stages []struct {
				Name   string            `json:"name"`
				ID     string            `json:"id"`
				Applet string            `json:"applet"`
				Inputs []map[string]any  `json:"inputs"`
			} `json:"stages"`
		} `json:"workflow"`
		Applets []struct {
			Name     string         `json:"name"`
			Instance string         `json:"instanceType"`
			Kind     map[string]any `json:"kind"`
			Source   string         `json:"source"`
		} `json:"applets"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.Workflow.Name != "math" {
		t.Errorf("workflow name = %q", decoded.Workflow.Name)
	}

	// Applets are sorted by name for deterministic output.
	var names []string
	for _, a := range decoded.Applets {
		names = append(names, a.Name)
	}
	if strings.Join(names, ",") != "Add,Mul,common,eval1" {
		t.Errorf("applet order = %v", names)
	}

	// The eval stage's link is tagged.
	for _, s := range decoded.Workflow.Stages {
		if s.Name != "eval1" {
			continue
		}
		if len(s.Inputs) != 1 || s.Inputs[0]["kind"] != "link" || s.Inputs[0]["stage"] != "Add" {
			t.Errorf("eval1 inputs = %v", s.Inputs)
		}
	}

	for _, a := range decoded.Applets {
		if a.Source == "" {
			t.Errorf("applet %s: empty source", a.Name)
		}
		if a.Kind["kind"] == "" {
			t.Errorf("applet %s: missing kind", a.Name)
		}
	}
}

func TestScatterKindJSONCarriesCalls(t *testing.T) {
	ns := compile(t, scatterSource, Options{})
	data, err := json.Marshal(ns.Applets["scatter1"])
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Kind struct {
			Kind  string            `json:"kind"`
			Calls map[string]string `json:"calls"`
		} `json:"kind"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Kind.Kind != "scatter" {
		t.Errorf("kind = %q", decoded.Kind.Kind)
	}
	if decoded.Kind.Calls["Inc"] != "Inc" {
		t.Errorf("calls = %v", decoded.Kind.Calls)
	}
}
