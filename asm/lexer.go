package asm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType classifies an assembler token.
type TokenType int

const (
	TokenIdent     TokenType = iota // LOAD_CONST, loop, done
	TokenLabel                      // done:
	TokenDirective                  // .code, .locals
	TokenNumber                     // 3
	TokenSymbol                     // :each, :<
	TokenString                     // "hello"
	TokenLiteral                    // $42, $1.5, $nil
	TokenCodeRef                    // @block
)

var tokenNames = map[TokenType]string{
	TokenIdent:     "IDENT",
	TokenLabel:     "LABEL",
	TokenDirective: "DIRECTIVE",
	TokenNumber:    "NUMBER",
	TokenSymbol:    "SYMBOL",
	TokenString:    "STRING",
	TokenLiteral:   "LITERAL",
	TokenCodeRef:   "CODEREF",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", int(t))
}

// Token is one lexeme of a source line. Text excludes sigils, so a symbol
// token for ":each" has Text "each"; string tokens keep their quotes.
type Token struct {
	Type TokenType
	Text string
	Line int
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Text)
}

// ---------------------------------------------------------------------------
// Lexer: splits source into per-line token lists
// ---------------------------------------------------------------------------

// Lex tokenizes source. Each returned slice holds the tokens of one
// non-empty line. Comments run from ';' or '#' to end of line.
func Lex(source string) ([][]Token, error) {
	var lines [][]Token
	for n, raw := range strings.Split(source, "\n") {
		toks, err := lexLine(raw, n+1)
		if err != nil {
			return nil, err
		}
		if len(toks) > 0 {
			lines = append(lines, toks)
		}
	}
	return lines, nil
}

func lexLine(line string, lineNo int) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == ',':
			i++
			continue
		case c == ';' || c == '#':
			return toks, nil
		case c == '"':
			end, err := scanString(line, i)
			if err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}
			toks = append(toks, Token{Type: TokenString, Text: line[i:end], Line: lineNo})
			i = end
			continue
		}

		start := i
		for i < len(line) && !isSpace(line[i]) && line[i] != ';' {
			i++
		}
		word := line[start:i]
		tok := Token{Line: lineNo}
		switch {
		case word[0] == '.' && len(word) > 1:
			tok.Type, tok.Text = TokenDirective, word[1:]
		case word[0] == ':' && len(word) > 1:
			tok.Type, tok.Text = TokenSymbol, word[1:]
		case word[0] == '$' && len(word) > 1:
			tok.Type, tok.Text = TokenLiteral, word[1:]
		case word[0] == '@' && len(word) > 1:
			tok.Type, tok.Text = TokenCodeRef, word[1:]
		case isDigit(word[0]):
			tok.Type, tok.Text = TokenNumber, word
		case strings.HasSuffix(word, ":") && len(word) > 1:
			tok.Type, tok.Text = TokenLabel, strings.TrimSuffix(word, ":")
		default:
			tok.Type, tok.Text = TokenIdent, word
		}
		toks = append(toks, tok)
	}
	return toks, nil
}

// scanString returns the offset just past the closing quote of the string
// starting at start.
func scanString(line string, start int) (int, error) {
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("unterminated string")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == ','
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
