package wdl

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is a syntax error with a source position.
type ParseError struct {
	Pos Pos
	Msg string
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

// ParseDocument parses a WDL document into a Namespace. The document
// may contain any number of tasks and at most one workflow.
func ParseDocument(src string) (*Namespace, error) {
	p := &parser{lx: newLexer(src), src: src}
	ns := &Namespace{}
	for {
		t := p.lx.peek()
		if t.kind == tokEOF {
			return ns, nil
		}
		switch {
		case t.is(tokIdent, "task"):
			task, err := p.parseTask()
			if err != nil {
				return nil, err
			}
			ns.Tasks = append(ns.Tasks, task)
		case t.is(tokIdent, "workflow"):
			if ns.Workflow != nil {
				return nil, p.errf(t, "multiple workflow definitions")
			}
			wf, err := p.parseWorkflow()
			if err != nil {
				return nil, err
			}
			ns.Workflow = wf
		case t.is(tokIdent, "import"):
			return nil, p.errf(t, "import statements are not supported")
		default:
			return nil, p.errf(t, "expected task or workflow, found %q", t.text)
		}
	}
}

// CheckSource parses src and discards the result. It is the legality
// gate applied to every generated source fragment.
func CheckSource(src string) error {
	_, err := ParseDocument(src)
	return err
}

type parser struct {
	lx  *lexer
	src string
}

func (p *parser) errf(t token, format string, args ...any) error {
	return &ParseError{Pos: Pos{Line: t.line, Col: t.col}, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(s string) (token, error) {
	t := p.lx.next()
	if !t.is(tokPunct, s) {
		return t, p.errf(t, "expected %q, found %q", s, t.text)
	}
	return t, nil
}

func (p *parser) expectIdent() (token, error) {
	t := p.lx.next()
	if t.kind != tokIdent {
		return t, p.errf(t, "expected identifier, found %q", t.text)
	}
	return t, nil
}

var primitiveNames = map[string]Primitive{
	"Boolean": TypeBoolean,
	"Int":     TypeInt,
	"Float":   TypeFloat,
	"String":  TypeString,
	"File":    TypeFile,
	"Object":  TypeObject,
}

// startsType reports whether the token begins a type production.
func startsType(t token) bool {
	if t.kind != tokIdent {
		return false
	}
	if _, ok := primitiveNames[t.text]; ok {
		return true
	}
	return t.text == "Array" || t.text == "Map" || t.text == "Pair"
}

// parseTypeTokens parses a type from the lexer. Shared with
// ParseTypeString.
func parseTypeTokens(lx *lexer) (Type, error) {
	t := lx.next()
	if t.kind != tokIdent {
		return nil, &ParseError{Pos: Pos{t.line, t.col}, Msg: fmt.Sprintf("expected type, found %q", t.text)}
	}
	var base Type
	switch t.text {
	case "Array":
		if _, err := expectLexPunct(lx, "["); err != nil {
			return nil, err
		}
		item, err := parseTypeTokens(lx)
		if err != nil {
			return nil, err
		}
		if _, err := expectLexPunct(lx, "]"); err != nil {
			return nil, err
		}
		arr := Array{Item: item}
		if lx.peek().is(tokPunct, "+") {
			lx.next()
			arr.NonEmpty = true
		}
		base = arr
	case "Map":
		if _, err := expectLexPunct(lx, "["); err != nil {
			return nil, err
		}
		key, err := parseTypeTokens(lx)
		if err != nil {
			return nil, err
		}
		if _, err := expectLexPunct(lx, ","); err != nil {
			return nil, err
		}
		val, err := parseTypeTokens(lx)
		if err != nil {
			return nil, err
		}
		if _, err := expectLexPunct(lx, "]"); err != nil {
			return nil, err
		}
		base = Map{Key: key, Value: val}
	case "Pair":
		if _, err := expectLexPunct(lx, "["); err != nil {
			return nil, err
		}
		left, err := parseTypeTokens(lx)
		if err != nil {
			return nil, err
		}
		if _, err := expectLexPunct(lx, ","); err != nil {
			return nil, err
		}
		right, err := parseTypeTokens(lx)
		if err != nil {
			return nil, err
		}
		if _, err := expectLexPunct(lx, "]"); err != nil {
			return nil, err
		}
		base = Pair{Left: left, Right: right}
	default:
		prim, ok := primitiveNames[t.text]
		if !ok {
			return nil, &ParseError{Pos: Pos{t.line, t.col}, Msg: fmt.Sprintf("unknown type %q", t.text)}
		}
		base = prim
	}
	if lx.peek().is(tokPunct, "?") {
		lx.next()
		base = MakeOptional(base)
	}
	return base, nil
}

func expectLexPunct(lx *lexer, s string) (token, error) {
	t := lx.next()
	if !t.is(tokPunct, s) {
		return t, &ParseError{Pos: Pos{t.line, t.col}, Msg: fmt.Sprintf("expected %q, found %q", s, t.text)}
	}
	return t, nil
}

// captureExpr consumes tokens until stop returns true at bracket depth
// zero, returning the covered source text. The stopping token is not
// consumed.
func (p *parser) captureExpr(stop func(t token, depth int, sameLine bool) bool) (Expr, error) {
	first := p.lx.peek()
	startLine := first.line
	startOff := first.start
	endOff := startOff
	depth := 0
	for {
		t := p.lx.peek()
		if t.kind == tokEOF {
			break
		}
		if stop(t, depth, t.line == startLine) {
			break
		}
		switch t.text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
		p.lx.next()
		endOff = t.end
		startLine = t.line
	}
	text := strings.TrimSpace(p.src[startOff:endOff])
	if text == "" {
		return Expr{}, p.errf(first, "expected expression")
	}
	return Expr{Text: text, Pos: Pos{first.line, first.col}}, nil
}

// exprToLineEnd captures an expression ending at the end of its line
// (or at a closing brace at depth zero).
func (p *parser) exprToLineEnd() (Expr, error) {
	return p.captureExpr(func(t token, depth int, sameLine bool) bool {
		if depth == 0 && !sameLine {
			return true
		}
		return depth == 0 && t.is(tokPunct, "}")
	})
}

// exprUntil captures an expression ending at one of the given
// punctuation tokens at depth zero.
func (p *parser) exprUntil(stops ...string) (Expr, error) {
	return p.captureExpr(func(t token, depth int, sameLine bool) bool {
		if depth != 0 || t.kind != tokPunct {
			return false
		}
		for _, s := range stops {
			if t.text == s {
				return true
			}
		}
		return false
	})
}

func (p *parser) parseDecl() (*Decl, error) {
	start := p.lx.peek()
	typ, err := parseTypeTokens(p.lx)
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	d := &Decl{Name: name.text, Type: typ, Pos: Pos{start.line, start.col}}
	if p.lx.peek().is(tokPunct, "=") {
		p.lx.next()
		expr, err := p.exprToLineEnd()
		if err != nil {
			return nil, err
		}
		d.Expr = &expr
	}
	return d, nil
}

func (p *parser) parseTask() (*Task, error) {
	kw := p.lx.next() // task
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	task := &Task{Name: name.text, Pos: Pos{kw.line, kw.col}}
	for {
		t := p.lx.peek()
		switch {
		case t.kind == tokEOF:
			return nil, p.errf(t, "unterminated task %q", task.Name)
		case t.is(tokPunct, "}"):
			p.lx.next()
			return task, nil
		case t.is(tokIdent, "command"):
			p.lx.next()
			body, err := p.parseCommand()
			if err != nil {
				return nil, err
			}
			task.Command = body
		case t.is(tokIdent, "runtime"):
			p.lx.next()
			attrs, err := p.parseRuntime()
			if err != nil {
				return nil, err
			}
			task.Runtime = attrs
		case t.is(tokIdent, "output"):
			p.lx.next()
			outs, err := p.parseOutputDecls()
			if err != nil {
				return nil, err
			}
			task.Outputs = outs
		case t.is(tokIdent, "meta") || t.is(tokIdent, "parameter_meta"):
			keep := t.text == "meta"
			p.lx.next()
			meta, err := p.parseMeta()
			if err != nil {
				return nil, err
			}
			if keep {
				task.Meta = meta
			}
		case startsType(t):
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			task.Decls = append(task.Decls, d)
		default:
			return nil, p.errf(t, "unexpected %q in task %q", t.text, task.Name)
		}
	}
}

func (p *parser) parseCommand() (string, error) {
	t := p.lx.peek()
	if t.is(tokPunct, "<") {
		for i := 0; i < 3; i++ {
			tt := p.lx.next()
			if !tt.is(tokPunct, "<") {
				return "", p.errf(tt, "expected <<< to open command")
			}
		}
		return p.lx.rawUntil(">>>")
	}
	if _, err := p.expectPunct("{"); err != nil {
		return "", err
	}
	return p.lx.rawUntilBrace()
}

func (p *parser) parseRuntime() ([]RuntimeAttr, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var attrs []RuntimeAttr
	for {
		t := p.lx.peek()
		if t.is(tokPunct, "}") {
			p.lx.next()
			return attrs, nil
		}
		if t.kind != tokIdent {
			return nil, p.errf(t, "expected runtime attribute name, found %q", t.text)
		}
		p.lx.next()
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		expr, err := p.exprToLineEnd()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, RuntimeAttr{Key: t.text, Expr: expr})
	}
}

func (p *parser) parseOutputDecls() ([]*Decl, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var outs []*Decl
	for {
		t := p.lx.peek()
		if t.is(tokPunct, "}") {
			p.lx.next()
			return outs, nil
		}
		if !startsType(t) {
			return nil, p.errf(t, "expected output declaration, found %q", t.text)
		}
		d, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		outs = append(outs, d)
	}
}

func (p *parser) parseMeta() ([]MetaAttr, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var attrs []MetaAttr
	for {
		t := p.lx.peek()
		if t.is(tokPunct, "}") {
			p.lx.next()
			return attrs, nil
		}
		if t.kind != tokIdent {
			return nil, p.errf(t, "expected meta key, found %q", t.text)
		}
		p.lx.next()
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		v := p.lx.next()
		var value string
		switch v.kind {
		case tokString:
			unq, err := strconv.Unquote(strings.ReplaceAll(v.text, "'", "\""))
			if err != nil {
				value = strings.Trim(v.text, `"'`)
			} else {
				value = unq
			}
		case tokIdent, tokNumber:
			value = v.text
		default:
			return nil, p.errf(v, "expected meta value, found %q", v.text)
		}
		attrs = append(attrs, MetaAttr{Key: t.text, Value: value})
	}
}

func (p *parser) parseWorkflow() (*Workflow, error) {
	kw := p.lx.next() // workflow
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	wf := &Workflow{Name: name.text, Pos: Pos{kw.line, kw.col}}
	elems, outs, hasOut, err := p.parseBody(wf.Name, true)
	if err != nil {
		return nil, err
	}
	wf.Elements = elems
	wf.Outputs = outs
	wf.HasOutputSection = hasOut
	return wf, nil
}

// parseBody parses workflow (or block) elements up to the closing
// brace. The output section is only legal at workflow level.
func (p *parser) parseBody(scope string, allowOutput bool) ([]Element, []WorkflowOutput, bool, error) {
	var elems []Element
	var outs []WorkflowOutput
	hasOut := false
	for {
		t := p.lx.peek()
		switch {
		case t.kind == tokEOF:
			return nil, nil, false, p.errf(t, "unterminated body of %q", scope)
		case t.is(tokPunct, "}"):
			p.lx.next()
			return elems, outs, hasOut, nil
		case t.is(tokIdent, "call"):
			call, err := p.parseCall()
			if err != nil {
				return nil, nil, false, err
			}
			elems = append(elems, call)
		case t.is(tokIdent, "scatter"):
			sc, err := p.parseScatter(scope)
			if err != nil {
				return nil, nil, false, err
			}
			elems = append(elems, sc)
		case t.is(tokIdent, "if"):
			cond, err := p.parseIf(scope)
			if err != nil {
				return nil, nil, false, err
			}
			elems = append(elems, cond)
		case t.is(tokIdent, "output") && allowOutput:
			p.lx.next()
			section, err := p.parseWorkflowOutputs()
			if err != nil {
				return nil, nil, false, err
			}
			outs = section
			hasOut = true
		case startsType(t):
			d, err := p.parseDecl()
			if err != nil {
				return nil, nil, false, err
			}
			elems = append(elems, d)
		default:
			return nil, nil, false, p.errf(t, "unexpected %q in body of %q", t.text, scope)
		}
	}
}

func (p *parser) parseCall() (*Call, error) {
	kw := p.lx.next() // call
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	call := &Call{Task: name.text, Pos: Pos{kw.line, kw.col}}
	if p.lx.peek().is(tokIdent, "as") {
		p.lx.next()
		alias, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		call.Alias = alias.text
	}
	if !p.lx.peek().is(tokPunct, "{") {
		return call, nil
	}
	p.lx.next()
	if p.lx.peek().is(tokPunct, "}") {
		p.lx.next()
		return call, nil
	}
	inTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if inTok.text != "input" {
		return nil, p.errf(inTok, "expected \"input\" in call body, found %q", inTok.text)
	}
	if _, err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	for {
		formal, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("="); err != nil {
			return nil, err
		}
		expr, err := p.exprUntil(",", "}")
		if err != nil {
			return nil, err
		}
		call.Inputs = append(call.Inputs, CallInput{Name: formal.text, Expr: expr})
		t := p.lx.next()
		if t.is(tokPunct, "}") {
			return call, nil
		}
		if !t.is(tokPunct, ",") {
			return nil, p.errf(t, "expected \",\" or \"}\" in call inputs, found %q", t.text)
		}
	}
}

func (p *parser) parseScatter(scope string) (*Scatter, error) {
	kw := p.lx.next() // scatter
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	v, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	inTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if inTok.text != "in" {
		return nil, p.errf(inTok, "expected \"in\" in scatter header, found %q", inTok.text)
	}
	coll, err := p.exprUntil(")")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	body, _, _, err := p.parseBody(scope+".scatter", false)
	if err != nil {
		return nil, err
	}
	return &Scatter{Var: v.text, Collection: coll, Body: body, Pos: Pos{kw.line, kw.col}}, nil
}

func (p *parser) parseIf(scope string) (*If, error) {
	kw := p.lx.next() // if
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.exprUntil(")")
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	body, _, _, err := p.parseBody(scope+".if", false)
	if err != nil {
		return nil, err
	}
	return &If{Cond: cond, Body: body, Pos: Pos{kw.line, kw.col}}, nil
}

func (p *parser) parseWorkflowOutputs() ([]WorkflowOutput, error) {
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var outs []WorkflowOutput
	for {
		t := p.lx.peek()
		if t.is(tokPunct, "}") {
			p.lx.next()
			return outs, nil
		}
		if t.kind == tokEOF {
			return nil, p.errf(t, "unterminated output section")
		}
		if startsType(t) {
			return nil, p.errf(t, "declarations are not supported in workflow output sections")
		}
		expr, err := p.exprToLineEnd()
		if err != nil {
			return nil, err
		}
		outs = append(outs, WorkflowOutput{Expr: expr, Pos: expr.Pos})
	}
}
