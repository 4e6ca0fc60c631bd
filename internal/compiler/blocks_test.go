package compiler

import (
	"testing"

	"github.com/me/dxwdl/pkg/wdl"
)

func parseWorkflowBody(t *testing.T, src string) []wdl.Element {
	t.Helper()
	ns, err := wdl.ParseDocument(src)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	return ns.Workflow.Elements
}

func TestPartitionDeclsAbsorbedIntoScatter(t *testing.T) {
	elems := parseWorkflowBody(t, `
workflow w {
  Int a = 1 + x
  Int b = 2 + x
  scatter (k in nums) {
    call T { input: i = k }
  }
}
`)
	blocks := partitionBody(elems)
	if len(blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(blocks))
	}
	sb, ok := blocks[0].(ScatterBlock)
	if !ok {
		t.Fatalf("block is %T, want ScatterBlock", blocks[0])
	}
	if len(sb.PreDecls) != 2 || sb.PreDecls[0].Name != "a" || sb.PreDecls[1].Name != "b" {
		t.Errorf("preDecls = %+v", sb.PreDecls)
	}
}

func TestPartitionCallFlushesDecls(t *testing.T) {
	elems := parseWorkflowBody(t, `
workflow w {
  Int a = 1 + x
  call T { input: i = a }
  Int b = 2 + a
}
`)
	blocks := partitionBody(elems)
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want 3", len(blocks))
	}
	if _, ok := blocks[0].(DeclRun); !ok {
		t.Errorf("block 0 is %T, want DeclRun", blocks[0])
	}
	if _, ok := blocks[1].(CallBlock); !ok {
		t.Errorf("block 1 is %T, want CallBlock", blocks[1])
	}
	if dr, ok := blocks[2].(DeclRun); !ok || len(dr.Decls) != 1 {
		t.Errorf("block 2 = %+v", blocks[2])
	}
}

func TestPartitionIfWithoutDecls(t *testing.T) {
	elems := parseWorkflowBody(t, `
workflow w {
  if (flag) {
    call T
  }
  call U
}
`)
	blocks := partitionBody(elems)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(blocks))
	}
	ib, ok := blocks[0].(IfBlock)
	if !ok {
		t.Fatalf("block 0 is %T, want IfBlock", blocks[0])
	}
	if len(ib.PreDecls) != 0 {
		t.Errorf("preDecls = %+v", ib.PreDecls)
	}
}

func TestSplitBlockBodyRejectsDeclAfterCall(t *testing.T) {
	elems := parseWorkflowBody(t, `
workflow w {
  scatter (k in nums) {
    call T { input: i = k }
    Int late = 1
  }
}
`)
	sc := elems[0].(*wdl.Scatter)
	_, _, err := splitBlockBody(sc.Body)
	if err == nil {
		t.Fatal("declaration after call accepted")
	}
	if code, _ := CodeOf(err); code != ErrUnsupported {
		t.Errorf("error code = %v, want %v", code, ErrUnsupported)
	}
}

func TestSplitBlockBodyRejectsNestedBlocks(t *testing.T) {
	elems := parseWorkflowBody(t, `
workflow w {
  scatter (k in nums) {
    scatter (j in more) {
      call T
    }
  }
}
`)
	sc := elems[0].(*wdl.Scatter)
	if _, _, err := splitBlockBody(sc.Body); err == nil {
		t.Fatal("nested scatter accepted")
	}
}
