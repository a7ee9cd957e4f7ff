package diag

import (
	"fmt"
)

type Code uint16

const (
	// Неизвестная ошибка - на первое время
	UnknownCode Code = 0

	// Front end
	FrontEndNative     Code = 1000
	FrontEndDriver     Code = 1001
	FrontEndUnparsable Code = 1002

	// Emitter
	EmitInfo             Code = 2000
	EmitAnonymousDecl    Code = 2001
	EmitUnsupportedDecl  Code = 2002
	EmitUnionAsBuffer    Code = 2003
	EmitBitField         Code = 2004
	EmitVariadic         Code = 2005
	EmitInlineDefinition Code = 2006
	EmitUnmappableType   Code = 2007
	EmitDuplicateBinding Code = 2008
	EmitFormat           Code = 2009
	EmitOpaqueRecord     Code = 2010
	EmitFieldRenamed     Code = 2011
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	FrontEndNative:       "Front-end diagnostic",
	FrontEndDriver:       "Front-end driver diagnostic",
	FrontEndUnparsable:   "Unrecognised front-end output",
	EmitInfo:             "Emitter information",
	EmitAnonymousDecl:    "Anonymous declaration not emitted",
	EmitUnsupportedDecl:  "Unsupported declaration",
	EmitUnionAsBuffer:    "Union emitted as raw buffer",
	EmitBitField:         "Bit-field not supported",
	EmitVariadic:         "Variadic function not supported",
	EmitInlineDefinition: "Inline definition not exported",
	EmitUnmappableType:   "Type has no binding",
	EmitDuplicateBinding: "Duplicate binding name",
	EmitFormat:           "Generated source could not be formatted",
	EmitOpaqueRecord:     "Record emitted as opaque",
	EmitFieldRenamed:     "Field renamed to stay unique",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("FE%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("EMT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[Code(0)]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
