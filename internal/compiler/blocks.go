package compiler

import "github.com/me/dxwdl/pkg/wdl"

// Block is one executable segment of a workflow body. The partitioner
// produces DeclRun, IfBlock, ScatterBlock and CallBlock variants.
type Block interface {
	block()
}

// DeclRun is a maximal run of consecutive declarations not immediately
// followed by a scatter or conditional.
type DeclRun struct {
	Decls []*wdl.Decl
}

func (DeclRun) block() {}

// IfBlock is a conditional together with the run of declarations that
// directly precedes it; those declarations are evaluated inside the
// same synthetic applet, saving a stage.
type IfBlock struct {
	PreDecls []*wdl.Decl
	Cond     *wdl.If
}

func (IfBlock) block() {}

// ScatterBlock is the scatter analogue of IfBlock.
type ScatterBlock struct {
	PreDecls []*wdl.Decl
	Scatter  *wdl.Scatter
}

func (ScatterBlock) block() {}

// CallBlock is a single call.
type CallBlock struct {
	Call *wdl.Call
}

func (CallBlock) block() {}

// partitionBody segments an ordered workflow body into blocks. A
// pending declaration run is flushed into a following scatter or
// conditional as its preDecls; a call flushes the pending run as its
// own DeclRun first.
func partitionBody(elems []wdl.Element) []Block {
	var blocks []Block
	var pending []*wdl.Decl
	flush := func() {
		if len(pending) > 0 {
			blocks = append(blocks, DeclRun{Decls: pending})
			pending = nil
		}
	}
	for _, el := range elems {
		switch v := el.(type) {
		case *wdl.Decl:
			pending = append(pending, v)
		case *wdl.If:
			blocks = append(blocks, IfBlock{PreDecls: pending, Cond: v})
			pending = nil
		case *wdl.Scatter:
			blocks = append(blocks, ScatterBlock{PreDecls: pending, Scatter: v})
			pending = nil
		case *wdl.Call:
			flush()
			blocks = append(blocks, CallBlock{Call: v})
		}
	}
	flush()
	return blocks
}
