package types

import "errors"

// SymbolKind represents the type of Go language symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
)

// Symbol is a package-level declaration found while analyzing a file
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Receiver  string // For methods: receiver type name
	Signature string

	// Range of the whole declaration, doc comment excluded
	Range Range
}

// QualifiedName returns Receiver.Name for methods and Name otherwise
func (s *Symbol) QualifiedName() string {
	if s.Kind == KindMethod && s.Receiver != "" {
		return s.Receiver + "." + s.Name
	}
	return s.Name
}

// Validate performs validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	switch s.Kind {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar:
	default:
		return errors.New("invalid symbol kind")
	}

	if s.Kind == KindMethod && s.Receiver == "" {
		return errors.New("methods must have a receiver type")
	}

	if s.Range.Start.Line <= 0 || s.Range.Start.Line > s.Range.End.Line {
		return errors.New("invalid symbol range")
	}

	return nil
}
