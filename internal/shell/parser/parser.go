// Package parser structures a token stream into the shell AST: a line of
// statements, each a chain of pipelines joined by && or ||, each pipeline a
// sequence of commands joined by |.
package parser

import (
	"github.com/oopisos/kernel/internal/shared/types"
	"github.com/oopisos/kernel/internal/shell/lexer"
)

// Redir is one redirection attached to a command.
type Redir struct {
	// Op is one of "<", ">", ">>", "2>", "&>".
	Op string
	// Target is the file operand, expanded at execution time.
	Target lexer.Word
}

// Command is one pipeline stage before expansion.
type Command struct {
	Words  []lexer.Word
	Redirs []Redir
}

// Pipeline is a non-empty command sequence joined by |.
type Pipeline struct {
	Commands []*Command
}

// Statement is a chain of pipelines joined by && / ||, optionally backgrounded.
type Statement struct {
	Pipelines []*Pipeline
	// Connectors[i] joins Pipelines[i] and Pipelines[i+1]: "&&" or "||".
	Connectors []string
	Background bool
}

// Line is a full parsed input line.
type Line struct {
	Statements []*Statement
}

// Empty reports whether the line holds no statements.
func (l *Line) Empty() bool { return len(l.Statements) == 0 }

var redirOps = map[string]bool{"<": true, ">": true, ">>": true, "2>": true, "&>": true}

// Parse builds the AST for a token stream produced by the lexer.
func Parse(tokens []lexer.Token) (*Line, error) {
	p := &parser{tokens: tokens}
	return p.parseLine()
}

// ParseString lexes and parses a line.
func ParseString(line string) (*Line, error) {
	tokens, err := lexer.Lex(line)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

type parser struct {
	tokens []lexer.Token
	pos    int
}

func (p *parser) peek() lexer.Token { return p.tokens[p.pos] }
func (p *parser) next() lexer.Token {
	t := p.tokens[p.pos]
	if t.Type != lexer.TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) atOp(ops ...string) (string, bool) {
	t := p.peek()
	if t.Type != lexer.TokenOp {
		return "", false
	}
	for _, op := range ops {
		if t.Op == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseLine() (*Line, error) {
	line := &Line{}
	for {
		// Skip empty statements from stray separators.
		for {
			if _, ok := p.atOp(";"); ok {
				p.next()
				continue
			}
			break
		}
		if p.peek().Type == lexer.TokenEOF {
			return line, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		line.Statements = append(line.Statements, stmt)

		switch t := p.peek(); {
		case t.Type == lexer.TokenEOF:
			return line, nil
		case t.Type == lexer.TokenOp && t.Op == ";":
			p.next()
		case stmt.Background:
			// '&' terminates the statement; the next token starts a new one.
		default:
			return nil, syntaxErr("unexpected token near %q", tokenText(t))
		}
	}
}

func (p *parser) parseStatement() (*Statement, error) {
	stmt := &Statement{}
	for {
		pipe, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		stmt.Pipelines = append(stmt.Pipelines, pipe)

		if op, ok := p.atOp("&&", "||"); ok {
			p.next()
			stmt.Connectors = append(stmt.Connectors, op)
			continue
		}
		break
	}
	if _, ok := p.atOp("&"); ok {
		p.next()
		stmt.Background = true
	}
	return stmt, nil
}

func (p *parser) parsePipeline() (*Pipeline, error) {
	pipe := &Pipeline{}
	for {
		cmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		pipe.Commands = append(pipe.Commands, cmd)
		if _, ok := p.atOp("|"); ok {
			p.next()
			continue
		}
		return pipe, nil
	}
}

func (p *parser) parseCommand() (*Command, error) {
	cmd := &Command{}
	for {
		t := p.peek()
		switch {
		case t.Type == lexer.TokenWord:
			p.next()
			cmd.Words = append(cmd.Words, t.Word)
		case t.Type == lexer.TokenOp && redirOps[t.Op]:
			p.next()
			target := p.peek()
			if target.Type != lexer.TokenWord {
				return nil, syntaxErr("missing redirection target after %q", t.Op)
			}
			p.next()
			cmd.Redirs = append(cmd.Redirs, Redir{Op: t.Op, Target: target.Word})
		default:
			if len(cmd.Words) == 0 {
				return nil, syntaxErr("unexpected token near %q", tokenText(t))
			}
			return cmd, nil
		}
	}
}

func tokenText(t lexer.Token) string {
	switch t.Type {
	case lexer.TokenOp:
		return t.Op
	case lexer.TokenWord:
		return t.Word.Literal()
	}
	return "end of input"
}

func syntaxErr(format string, args ...interface{}) error {
	return types.NewError(types.KindParseError, "syntax error: "+format, args...)
}
