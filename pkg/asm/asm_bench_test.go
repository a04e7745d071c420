package asm

import (
	"fmt"
	"strings"
	"testing"
)

func BenchmarkAssemble(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("_start:\n")
	for i := 0; i < 200; i++ {
		sb.WriteString("    LI R1, 65\n")
		sb.WriteString("    STORE R1, R0, R0\n")
		sb.WriteString("    ADDI R2, R2, 1\n")
	}
	sb.WriteString("    HALT\n")
	src := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Assemble(src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAssembleWithLabels(b *testing.B) {
	var sb strings.Builder
	sb.WriteString("_start:\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "block%d:\n", i)
		sb.WriteString("    ADDI R1, R1, 1\n")
		fmt.Fprintf(&sb, "    BEQ R1, R0, block%d\n", (i+1)%100)
	}
	sb.WriteString("    HALT\n")
	src := sb.String()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Assemble(src); err != nil {
			b.Fatal(err)
		}
	}
}
