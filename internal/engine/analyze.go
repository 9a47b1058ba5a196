// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"strings"

	"kogine/internal/scriptenv"

	"mvdan.cc/sh/v3/syntax"
)

type (
	// Analysis holds the results of statically inspecting a parsed script.
	Analysis struct {
		// Funcs is the set of function names declared at the top level.
		Funcs map[string]bool
		// GuardEntrypoint is the function the script designates as its own
		// entrypoint inside an identity guard, or empty.
		GuardEntrypoint string
	}

	// Binding describes how a function's body consumes its inputs. It drives
	// graceful argument binding: only inputs the function can observe are
	// passed to it.
	Binding struct {
		// Positional is true when the body reads $1..$N, $@, $* or $#.
		Positional bool
		// Open is true when the body reads $@ or $*, which also makes the
		// function accept every keyword argument.
		Open bool
		// Reads holds the plain variable names the body expands.
		Reads map[string]bool
	}
)

// Analyze inspects a parsed script for top-level function declarations and
// an identity-guard entrypoint designation.
//
// A guard is a top-level if-statement whose condition compares the unit name
// variable (on the left) against the reserved main identity:
//
//	if [ "$__name__" = "__main__" ]; then run_training "$@"; fi
//
// The [[ ]], test, and == spellings are recognized too. The designated
// entrypoint is the first call inside the guard body that names a declared
// function, so helper calls such as echo are skipped.
func Analyze(file *syntax.File) *Analysis {
	an := &Analysis{Funcs: make(map[string]bool)}

	for _, stmt := range file.Stmts {
		if decl, ok := stmt.Cmd.(*syntax.FuncDecl); ok {
			an.Funcs[decl.Name.Value] = true
		}
	}

	for _, stmt := range file.Stmts {
		ifc, ok := stmt.Cmd.(*syntax.IfClause)
		if !ok || stmt.Negated {
			continue
		}
		if !hasIdentityCond(ifc) {
			continue
		}
		if name := firstFuncCall(ifc.Then, an.Funcs); name != "" {
			an.GuardEntrypoint = name
			break
		}
	}

	return an
}

// AnalyzeBinding inspects a function body for the parameters it expands.
func AnalyzeBinding(body *syntax.Stmt) *Binding {
	b := &Binding{Reads: make(map[string]bool)}
	if body == nil {
		return b
	}

	syntax.Walk(body, func(node syntax.Node) bool {
		pe, ok := node.(*syntax.ParamExp)
		if !ok || pe.Param == nil {
			return true
		}
		name := pe.Param.Value
		switch {
		case name == "@" || name == "*":
			b.Positional = true
			b.Open = true
		case name == "#":
			b.Positional = true
		case isPositionalRef(name):
			b.Positional = true
		case scriptenv.IsIdentifier(name):
			b.Reads[name] = true
		}
		return true
	})

	return b
}

// hasIdentityCond reports whether any condition statement is an identity
// comparison with the unit name variable strictly on the left.
func hasIdentityCond(ifc *syntax.IfClause) bool {
	for _, cond := range ifc.Cond {
		if cond.Negated {
			continue
		}
		switch cmd := cond.Cmd.(type) {
		case *syntax.TestClause:
			if bt, ok := cmd.X.(*syntax.BinaryTest); ok && bt.Op == syntax.TsMatch {
				if isNameParam(bt.X) && isMainLit(bt.Y) {
					return true
				}
			}
		case *syntax.CallExpr:
			if isIdentityTestCall(cmd) {
				return true
			}
		}
	}
	return false
}

// isIdentityTestCall matches the [ ... ] and test ... spellings of the guard.
func isIdentityTestCall(call *syntax.CallExpr) bool {
	if len(call.Assigns) != 0 {
		return false
	}
	args := call.Args
	if len(args) == 0 {
		return false
	}

	head, ok := wordText(args[0])
	if !ok {
		return false
	}
	switch head {
	case "[":
		if len(args) != 5 {
			return false
		}
		if closing, ok := wordText(args[4]); !ok || closing != "]" {
			return false
		}
		args = args[1:4]
	case "test":
		if len(args) != 4 {
			return false
		}
		args = args[1:4]
	default:
		return false
	}

	op, ok := wordText(args[1])
	if !ok || (op != "=" && op != "==") {
		return false
	}

	if name, ok := wordParam(args[0]); !ok || name != scriptenv.NameVar {
		return false
	}
	lit, ok := wordText(args[2])
	return ok && lit == scriptenv.MainName
}

// firstFuncCall returns the name of the first call within stmts that targets
// a declared function, in source order.
func firstFuncCall(stmts []*syntax.Stmt, funcs map[string]bool) string {
	found := ""
	for _, stmt := range stmts {
		if found != "" {
			break
		}
		syntax.Walk(stmt, func(node syntax.Node) bool {
			if found != "" {
				return false
			}
			call, ok := node.(*syntax.CallExpr)
			if !ok || len(call.Assigns) != 0 || len(call.Args) == 0 {
				return true
			}
			if name, ok := wordText(call.Args[0]); ok && funcs[name] {
				found = name
				return false
			}
			return true
		})
	}
	return found
}

// isNameParam reports whether the test operand expands the unit name variable.
func isNameParam(expr syntax.TestExpr) bool {
	w, ok := expr.(*syntax.Word)
	if !ok {
		return false
	}
	name, ok := wordParam(w)
	return ok && name == scriptenv.NameVar
}

// isMainLit reports whether the test operand is the reserved main identity
// as a static literal.
func isMainLit(expr syntax.TestExpr) bool {
	w, ok := expr.(*syntax.Word)
	if !ok {
		return false
	}
	lit, ok := wordText(w)
	return ok && lit == scriptenv.MainName
}

// isPositionalRef reports whether name is a positional parameter reference
// such as 1 or 12. $0 is the script name, not an argument.
func isPositionalRef(name string) bool {
	if name == "" || name == "0" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// wordText returns the static text of a word, resolving single and double
// quotes. It fails for words with expansions or other dynamic parts.
func wordText(w *syntax.Word) (string, bool) {
	if w == nil {
		return "", false
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return "", false
				}
				sb.WriteString(lit.Value)
			}
		default:
			return "", false
		}
	}
	return sb.String(), true
}

// wordParam returns the parameter name when a word is exactly one parameter
// expansion, with or without surrounding double quotes.
func wordParam(w *syntax.Word) (string, bool) {
	if w == nil || len(w.Parts) != 1 {
		return "", false
	}
	switch p := w.Parts[0].(type) {
	case *syntax.ParamExp:
		return paramName(p)
	case *syntax.DblQuoted:
		if len(p.Parts) != 1 {
			return "", false
		}
		if pe, ok := p.Parts[0].(*syntax.ParamExp); ok {
			return paramName(pe)
		}
	}
	return "", false
}

// paramName extracts the name of a plain parameter expansion. Expansions
// with operators (defaults, substitutions) are not plain references.
func paramName(pe *syntax.ParamExp) (string, bool) {
	if pe.Param == nil || pe.Excl || pe.Length || pe.Width || pe.Index != nil ||
		pe.Slice != nil || pe.Repl != nil || pe.Exp != nil {
		return "", false
	}
	return pe.Param.Value, true
}
