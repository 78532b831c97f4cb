package criteria

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parse turns a measurable string into an expr. Grammar:
//
//	measurable = "true" | "false"
//	           | IDENT
//	           | IDENT OP NUMBER
//	           | IDENT ("==" | "!=") STRING
//	OP         = "<" | "<=" | "==" | "!=" | ">=" | ">"
func parse(measurable string) (*expr, error) {
	tokens, err := tokenize(measurable)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty measurable")
	}

	first := tokens[0]
	if first.kind != tokIdent {
		return nil, fmt.Errorf("measurable must start with an identifier or boolean literal")
	}

	if len(tokens) == 1 {
		switch first.text {
		case "true":
			return &expr{isLiteral: true, literal: true}, nil
		case "false":
			return &expr{isLiteral: true, literal: false}, nil
		}
		return &expr{ident: first.text}, nil
	}

	if len(tokens) != 3 {
		return nil, fmt.Errorf("measurable must be a single comparison: IDENT OP VALUE")
	}
	op := tokens[1]
	rhs := tokens[2]
	if op.kind != tokOp {
		return nil, fmt.Errorf("expected comparison operator, got %q", op.text)
	}

	e := &expr{ident: first.text, op: op.text}
	switch rhs.kind {
	case tokNumber:
		n, err := strconv.ParseFloat(rhs.text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", rhs.text)
		}
		e.numRHS = n
	case tokString:
		if op.text != "==" && op.text != "!=" {
			return nil, fmt.Errorf("strings only support == and != (got %s)", op.text)
		}
		e.isStrCmp = true
		e.strRHS = rhs.text
	default:
		return nil, fmt.Errorf("comparison right side must be a number or string literal")
	}
	return e, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokOp
	tokNumber
	tokString
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			op := string(c)
			if i+1 < len(s) && s[i+1] == '=' {
				op += "="
				i++
			}
			i++
			if op == "=" || op == "!" {
				return nil, fmt.Errorf("invalid operator %q", op)
			}
			tokens = append(tokens, token{kind: tokOp, text: op})
		case c == '"' || c == '\'':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokString, text: s[i+1 : i+1+end]})
			i += end + 2
		case c >= '0' && c <= '9' || c == '-' || c == '.':
			start := i
			i++
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: s[start:i]})
		case isIdentByte(c):
			start := i
			for i < len(s) && isIdentByte(s[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: s[start:i]})
		default:
			return nil, fmt.Errorf("unexpected character %q", rune(c))
		}
	}
	return tokens, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}
