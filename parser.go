package linguine

import "fmt"

// Parser is a hand-written recursive-descent parser for the grammar in
// spec §4.3. The spec's own design notes (§9) sanction substituting a
// hand-written parser for the source's generated LALR(1) tables,
// observing the grammar is LL(2) once `else if` is merged during
// parsing — which is exactly what this parser does (see parseIf).
type Parser struct {
	file string
	lex  *Lexer
	tok  Token
	next Token
	err  error
}

// NewParser creates a parser over src, attributing syntax errors to file.
func NewParser(file string, src []byte) (*Parser, error) {
	p := &Parser{file: file, lex: NewLexer(file, src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.tok = p.next
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.next = t
	return nil
}

func (p *Parser) syntaxErr(format string, args ...interface{}) error {
	return &SyntaxError{
		At:      Site{File: p.file, Line: p.tok.Line},
		Column:  p.tok.Column,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *Parser) expect(k TokenKind) (Token, error) {
	if p.tok.Kind != k {
		return Token{}, p.syntaxErr("expected %s, got %s", k, p.tok.Kind)
	}
	t := p.tok
	if err := p.advance(); err != nil {
		return Token{}, err
	}
	return t, nil
}

func (p *Parser) at(k TokenKind) bool { return p.tok.Kind == k }

// Parse consumes the whole token stream and returns the root FuncList.
func (p *Parser) Parse() (*FuncList, error) {
	fl := &FuncList{pos: pos{p.tok.Line, p.tok.Column}}
	for !p.at(TokEOF) {
		fn, err := p.parseFunc()
		if err != nil {
			return nil, err
		}
		fl.Funcs = append(fl.Funcs, fn)
	}
	return fl, nil
}

func (p *Parser) parseFunc() (*FuncDecl, error) {
	kw, err := p.expect(TokFunc)
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokSymbol)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var params []string
	seen := map[string]bool{}
	if !p.at(TokRParen) {
		for {
			pn, err := p.expect(TokSymbol)
			if err != nil {
				return nil, err
			}
			if seen[pn.Text] {
				return nil, &CompileError{
					At:      Site{File: p.file, Line: pn.Line},
					Message: fmt.Sprintf("duplicate parameter %q in function %q", pn.Text, name.Text),
				}
			}
			seen[pn.Text] = true
			params = append(params, pn.Text)
			if !p.at(TokComma) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDecl{pos: pos{kw.Line, kw.Column}, Name: name.Text, Params: params, Body: body}, nil
}

func (p *Parser) parseBlock() ([]Stmt, error) {
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.at(TokRBrace) {
		if p.at(TokEOF) {
			return nil, p.syntaxErr("unexpected EOF, expected }")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	switch p.tok.Kind {
	case TokIf:
		return p.parseIf()
	case TokWhile:
		return p.parseWhile()
	case TokFor:
		return p.parseFor()
	case TokReturn:
		return p.parseReturn()
	case TokBreak:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemi); err != nil {
			return nil, err
		}
		return &BreakStmt{stmtBase{pos{t.Line, t.Column}}}, nil
	case TokContinue:
		t := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemi); err != nil {
			return nil, err
		}
		return &ContinueStmt{stmtBase{pos{t.Line, t.Column}}}, nil
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseExprOrAssignStmt() (Stmt, error) {
	line, col := p.tok.Line, p.tok.Column
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(TokAssign) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		rhs, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokSemi); err != nil {
			return nil, err
		}
		return &AssignStmt{stmtBase{pos{line, col}}, e, rhs}, nil
	}
	if _, err := p.expect(TokSemi); err != nil {
		return nil, err
	}
	return &ExprStmt{stmtBase{pos{line, col}}, e}, nil
}

// parseIf parses the primary `if`, then folds any immediately
// following `else if` / `else` clauses into the same node. This is
// the LL(2) lookahead spec §9 refers to: after a block, peeking one
// token (`else`) and then one more (`if` or not) decides the shape.
func (p *Parser) parseIf() (Stmt, error) {
	kw, err := p.expect(TokIf)
	if err != nil {
		return nil, err
	}
	cond, then, err := p.parseCondAndBlock()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{stmtBase: stmtBase{pos{kw.Line, kw.Column}}, Cond: cond, Then: then}
	for p.at(TokElse) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.at(TokIf) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			econd, ebody, err := p.parseCondAndBlock()
			if err != nil {
				return nil, err
			}
			stmt.Elifs = append(stmt.Elifs, ElifClause{Cond: econd, Body: ebody})
			continue
		}
		ebody, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = ebody
		break
	}
	return stmt, nil
}

func (p *Parser) parseCondAndBlock() (Expr, []Stmt, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, nil, err
	}
	return cond, body, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	kw, err := p.expect(TokWhile)
	if err != nil {
		return nil, err
	}
	cond, body, err := p.parseCondAndBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{stmtBase{pos{kw.Line, kw.Column}}, cond, body}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	kw, err := p.expect(TokFor)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	v1, err := p.expect(TokSymbol)
	if err != nil {
		return nil, err
	}

	if p.at(TokComma) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		v2, err := p.expect(TokSymbol)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokIn); err != nil {
			return nil, err
		}
		container, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ForKV{stmtBase{pos{kw.Line, kw.Column}}, v1.Text, v2.Text, container, body}, nil
	}

	if _, err := p.expect(TokIn); err != nil {
		return nil, err
	}
	start, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.at(TokDotDot) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		end, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ForRange{stmtBase{pos{kw.Line, kw.Column}}, v1.Text, start, end, body}, nil
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForV{stmtBase{pos{kw.Line, kw.Column}}, v1.Text, start, body}, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	kw, err := p.expect(TokReturn)
	if err != nil {
		return nil, err
	}
	if p.at(TokSemi) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ReturnStmt{stmtBase: stmtBase{pos{kw.Line, kw.Column}}}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokSemi); err != nil {
		return nil, err
	}
	return &ReturnStmt{stmtBase{pos{kw.Line, kw.Column}}, e}, nil
}

// ---- Expressions: precedence climbing, lowest to highest:
// || && == != < <= > >= + - * / % unary- postfix

func (p *Parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(TokOr) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase{pos{op.Line, op.Column}}, TokOr, left, right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(TokAnd) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase{pos{op.Line, op.Column}}, TokAnd, left, right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(TokEq) || p.at(TokNeq) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase{pos{op.Line, op.Column}}, op.Kind, left, right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(TokLt) || p.at(TokLte) || p.at(TokGt) || p.at(TokGte) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase{pos{op.Line, op.Column}}, op.Kind, left, right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.at(TokPlus) || p.at(TokMinus) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase{pos{op.Line, op.Column}}, op.Kind, left, right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(TokStar) || p.at(TokSlash) || p.at(TokPercent) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinOp{exprBase{pos{op.Line, op.Column}}, op.Kind, left, right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.at(TokMinus) {
		op := p.tok
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryNeg{exprBase{pos{op.Line, op.Column}}, operand}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Kind {
		case TokLBracket:
			op := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokRBracket); err != nil {
				return nil, err
			}
			e = &Subscript{exprBase{pos{op.Line, op.Column}}, e, idx}
		case TokDot:
			op := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expect(TokSymbol)
			if err != nil {
				return nil, err
			}
			e = &Dot{exprBase{pos{op.Line, op.Column}}, e, name.Text}
		case TokLParen:
			op := p.tok
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &Call{exprBase{pos{op.Line, op.Column}}, e, args}
		case TokArrow:
			op := p.tok
			if err := p.advance(); err != nil {
				return nil, err
			}
			name, err := p.expect(TokSymbol)
			if err != nil {
				return nil, err
			}
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			e = &ThisCall{exprBase{pos{op.Line, op.Column}}, e, name.Text, args}
		default:
			return e, nil
		}
	}
}

// parseArgs parses `(args?)`, assuming the cursor is at `(`.
func (p *Parser) parseArgs() ([]Expr, error) {
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	var args []Expr
	if !p.at(TokRParen) {
		for {
			a, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
			if !p.at(TokComma) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.tok
	switch t.Kind {
	case TokInt:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Term{exprBase{pos{t.Line, t.Column}}, TermInt, t.IntVal, 0, "", ""}, nil
	case TokFloat:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Term{exprBase{pos{t.Line, t.Column}}, TermFloat, 0, t.FltVal, "", ""}, nil
	case TokStr:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Term{exprBase{pos{t.Line, t.Column}}, TermStr, 0, 0, t.Text, ""}, nil
	case TokSymbol:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Term{exprBase{pos{t.Line, t.Column}}, TermSymbol, 0, 0, "", t.Text}, nil
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case TokLBracket:
		return p.parseArrayLit()
	case TokLBrace:
		return p.parseDictLit()
	}
	return nil, p.syntaxErr("unexpected token %s", t.Kind)
}

func (p *Parser) parseArrayLit() (Expr, error) {
	start, err := p.expect(TokLBracket)
	if err != nil {
		return nil, err
	}
	var items []Expr
	if !p.at(TokRBracket) {
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, e)
			if !p.at(TokComma) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRBracket); err != nil {
		return nil, err
	}
	return &ArrayLit{exprBase{pos{start.Line, start.Column}}, items}, nil
}

func (p *Parser) parseDictLit() (Expr, error) {
	start, err := p.expect(TokLBrace)
	if err != nil {
		return nil, err
	}
	var entries []DictEntry
	if !p.at(TokRBrace) {
		for {
			key, err := p.expect(TokSymbol)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokColon); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			entries = append(entries, DictEntry{Key: key.Text, Value: val})
			if !p.at(TokComma) {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(TokRBrace); err != nil {
		return nil, err
	}
	return &DictLit{exprBase{pos{start.Line, start.Column}}, entries}, nil
}
