package codebridge

import (
	"strings"
	"testing"
)

func TestDefineLineKeys(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantKey string
	}{
		{
			name:    "variable definition cut at equals",
			line:    "uint32_t* words = (uint32_t*) buffer",
			wantKey: "uint32_t* words",
		},
		{
			name:    "inline function cut at brace",
			line:    "int twice(int x) { return x + x; }",
			wantKey: "int twice(int x)",
		},
		{
			name:    "whitespace normalized",
			line:    "uint32_t*   result   = 0",
			wantKey: "uint32_t* result",
		},
		{
			name:    "include line has no cut point",
			line:    `#include "my_functions.h"`,
			wantKey: `#include "my_functions.h"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDefines()
			key := d.DefineLine(tt.line)
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
			if v, ok := d.Get(key); !ok || !strings.HasSuffix(v, ";") {
				t.Errorf("stored value = %q, want semicolon-terminated", v)
			}
		})
	}
}

func TestDefineLaterWins(t *testing.T) {
	d := NewDefines()
	d.DefineLine("uint32_t* words = (uint32_t*) buffer")
	d.DefineLine("uint32_t* words = (uint32_t*) pad")

	if d.Len() != 1 {
		t.Fatalf("len = %d, want 1 (same key replaces)", d.Len())
	}
	v, _ := d.Get("uint32_t* words")
	if !strings.Contains(v, "pad") {
		t.Errorf("value = %q, want the later definition", v)
	}
}

func TestDefineBlock(t *testing.T) {
	d := NewDefines()
	key := d.DefineBlock("uint32_t sum(uint32_t* values, int count)",
		"uint32_t result = 0;\nwhile (count--) { result += *(values++); }\nreturn result")

	if key != "uint32_t sum(uint32_t* values, int count)" {
		t.Errorf("key = %q", key)
	}
	v, ok := d.Get(key)
	if !ok {
		t.Fatal("block definition not stored")
	}
	if !strings.HasPrefix(v, "uint32_t sum(uint32_t* values, int count) {") {
		t.Errorf("value = %q, want header followed by brace", v)
	}
	if !strings.HasSuffix(strings.TrimSpace(v), "};") {
		t.Errorf("value = %q, want closed body", v)
	}
}

func TestRenderAndClear(t *testing.T) {
	d := NewDefines()
	d.DefineLine("int a = 1")
	d.DefineLine("int b = 2")

	rendered := d.Render()
	if !strings.Contains(rendered, "int a = 1;") || !strings.Contains(rendered, "int b = 2;") {
		t.Errorf("render = %q", rendered)
	}

	d.Clear()
	if d.Len() != 0 {
		t.Errorf("len = %d after Clear, want 0", d.Len())
	}
	if d.Render() != "" {
		t.Errorf("render after Clear = %q, want empty", d.Render())
	}
}
