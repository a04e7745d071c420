package ir

import (
	"strings"
	"testing"
)

func valid() *Program {
	return &Program{Funcs: []*Function{
		{
			Name:      "main",
			NumLocals: 2,
			Body: []Op{
				Const{Dst: 0, Value: 7},
				Call{Dst: 1, Callee: "twice", Args: []int{0}},
				Emit{Src: 1},
				Ret{Src: None},
			},
		},
		{
			Name:        "twice",
			NumParams:   1,
			NumLocals:   2,
			ReturnArity: 1,
			Body: []Op{
				Bin{Kind: Add, Dst: 1, L: 0, R: 0},
				Ret{Src: 1},
			},
		},
	}}
}

func TestValidateAccepts(t *testing.T) {
	if err := valid().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestFuncLookup(t *testing.T) {
	p := valid()
	if f := p.Func("twice"); f == nil || f.NumParams != 1 {
		t.Errorf("expected to find twice with 1 param, got %+v", f)
	}
	if f := p.Func("absent"); f != nil {
		t.Errorf("expected nil for unknown name, got %+v", f)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Program)
		want   string
	}{
		{
			"duplicate function",
			func(p *Program) { p.Funcs = append(p.Funcs, &Function{Name: "main", NumLocals: 1}) },
			"duplicate definition",
		},
		{
			"params exceed locals",
			func(p *Program) { p.Funcs[1].NumLocals = 0 },
			"params exceed",
		},
		{
			"bad return arity",
			func(p *Program) { p.Funcs[1].ReturnArity = 2 },
			"return arity",
		},
		{
			"local out of range",
			func(p *Program) { p.Funcs[0].Body[0] = Const{Dst: 9, Value: 1} },
			"out of range",
		},
		{
			"negative local",
			func(p *Program) { p.Funcs[0].Body[2] = Emit{Src: None} },
			"out of range",
		},
		{
			"unknown callee",
			func(p *Program) { p.Funcs[0].Body[1] = Call{Dst: 1, Callee: "thrice", Args: []int{0}} },
			"unknown function thrice",
		},
		{
			"argument count",
			func(p *Program) { p.Funcs[0].Body[1] = Call{Dst: 1, Callee: "twice"} },
			"callee declares 1",
		},
		{
			"value call on void callee",
			func(p *Program) { p.Funcs[1].ReturnArity = 0; p.Funcs[1].Body[1] = Ret{Src: None} },
			"returns no value",
		},
		{
			"bare return in value function",
			func(p *Program) { p.Funcs[1].Body[1] = Ret{Src: None} },
			"bare return",
		},
		{
			"value return in void function",
			func(p *Program) { p.Funcs[0].Body[3] = Ret{Src: 0} },
			"value return",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid()
			tc.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %q", tc.want, err.Error())
			}
		})
	}
}

func TestValidateNestedBodies(t *testing.T) {
	p := valid()
	p.Funcs[0].Body = []Op{
		Const{Dst: 0, Value: 1},
		If{
			Cond: 0,
			Then: []Op{
				While{
					Pre:  []Op{Const{Dst: 9, Value: 0}},
					Cond: 0,
				},
			},
		},
		Ret{Src: None},
	}
	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("expected out-of-range error from nested body, got %v", err)
	}
}
