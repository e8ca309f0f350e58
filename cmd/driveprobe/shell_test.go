package main

import (
	"bufio"
	"strings"
	"testing"
)

func TestBlockHeader(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantHeader string
		wantBlock  bool
	}{
		{
			name:       "open brace at end starts a block",
			line:       "def uint32_t sum(uint32_t* values, int count) {",
			wantHeader: "uint32_t sum(uint32_t* values, int count)",
			wantBlock:  true,
		},
		{
			name:      "one-line definition stays line mode",
			line:      "def int twice(int x) { return x + x; }",
			wantBlock: false,
		},
		{
			name:      "plain variable define stays line mode",
			line:      "def uint32_t* words = (uint32_t*) buffer",
			wantBlock: false,
		},
		{
			name:      "bare def lists definitions",
			line:      "def",
			wantBlock: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, ok := blockHeader(tt.line)
			if ok != tt.wantBlock {
				t.Fatalf("block = %v, want %v", ok, tt.wantBlock)
			}
			if ok && header != tt.wantHeader {
				t.Errorf("header = %q, want %q", header, tt.wantHeader)
			}
		})
	}
}

func TestReadBlockBody(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader(
		"uint32_t result = 0;\nwhile (count--) { result += *(values++); }\nreturn result;\n}\n"))

	body, err := readBlockBody(in)
	if err != nil {
		t.Fatalf("readBlockBody: %v", err)
	}
	if !strings.Contains(body, "return result;") {
		t.Errorf("body = %q, missing return line", body)
	}
	if strings.Contains(body, "\n}") || strings.HasSuffix(body, "}") {
		t.Errorf("body = %q, closing brace must not be captured", body)
	}
}

func TestReadBlockBodyUnterminated(t *testing.T) {
	in := bufio.NewScanner(strings.NewReader("int x = 1;\n"))

	if _, err := readBlockBody(in); err == nil {
		t.Fatal("unterminated block accepted, want error")
	}
}
