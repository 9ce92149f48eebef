package diag

import (
	"fmt"
)

// Code identifies a diagnostic family and kind. Families are numbered in
// blocks of 1000 so new codes can be added without renumbering.
type Code uint16

const (
	UnknownCode Code = 0

	// I/O and unit loading
	IOInfo          Code = 1000
	IOLoadUnitError Code = 1001
	IOBadUnitFile   Code = 1002

	// Declaration binding
	BindInfo             Code = 2000
	BindDuplicateSymbol  Code = 2001
	BindUnresolvedImport Code = 2002
	BindDuplicateImport  Code = 2003
	BindUnresolvedType   Code = 2004
	BindFieldConflict    Code = 2005
	BindBadUnitName      Code = 2006
	BindDuplicateParam   Code = 2007

	// Static analysis
	AnalysisInfo        Code = 3000
	AnalysisNamingStyle Code = 3001
	AnalysisMissingDoc  Code = 3002

	// Method body compilation
	BodyInfo             Code = 4000
	BodyUnknownOp        Code = 4001
	BodyUnresolvedCallee Code = 4002
	BodyUndefinedLocal   Code = 4003
	BodyBadOperandCount  Code = 4004
	BodyMissingReturn    Code = 4005
	BodyArityMismatch    Code = 4006

	// Module finalization and serialization
	EmitInfo              Code = 5000
	EmitUnusedImport      Code = 5001
	EmitDuplicateResource Code = 5002
	EmitMissingStream     Code = 5003
)

func (c Code) String() string {
	return fmt.Sprintf("SB%04d", uint16(c))
}
