package internal

// Opcode identifies one VM instruction. Numbering follows the classic
// StringTemplate v4 bytecode table so the disassembler's opcode names
// line up with the literature a maintainer would recognize.
type Opcode byte

const (
	OpInvalid Opcode = iota
	OpLoadStr
	OpLoadAttr
	OpLoadLocal
	OpLoadProp
	OpLoadPropInd
	OpStoreOption
	OpStoreArg
	OpNew
	OpNewInd
	OpNewBoxArgs
	OpSuperNew
	OpSuperNewBoxArgs
	OpWrite
	OpWriteOpt
	OpMap
	OpRotMap
	OpZipMap
	OpBr
	OpBrf
	OpOptions
	OpArgs
	OpPassthru
	opReservedPassthruInd // reserved, never emitted
	OpList
	OpAdd
	OpToStr
	OpFirst
	OpLast
	OpRest
	OpTrunc
	OpStrip
	OpTrim
	OpLength
	OpStrlen
	OpReverse
	OpNot
	OpOr
	OpAnd
	OpIndent
	OpDedent
	OpNewline
	OpNoop
	OpPop
	OpNull
	OpTrue
	OpFalse
	OpWriteStr
	OpWriteLocal
	maxOpcode
)

// OperandType classifies one operand slot of an instruction.
type OperandType int

const (
	OperandNone OperandType = iota
	OperandString               // 16-bit string-pool index
	OperandAddr                 // 16-bit instruction address
	OperandInt                  // 16-bit integer literal
)

// OperandSizeBytes is the fixed width of every non-empty operand.
const OperandSizeBytes = 2

// MaxOperands bounds the operand count of any instruction.
const MaxOperands = 2

// InstructionInfo describes one opcode's name and operand shape, the
// information an assembler/disassembler needs.
type InstructionInfo struct {
	Name    string
	Operand [MaxOperands]OperandType
	NOpnds  int
}

func instr(name string, opnds ...OperandType) InstructionInfo {
	info := InstructionInfo{Name: name, NOpnds: len(opnds)}
	for i, o := range opnds {
		info.Operand[i] = o
	}
	return info
}

// Instructions is the opcode table shared by the code generator, the
// interpreter, and the disassembler.
var Instructions = [maxOpcode]InstructionInfo{
	OpInvalid:             instr("<invalid>"),
	OpLoadStr:             instr("load_str", OperandString),
	OpLoadAttr:            instr("load_attr", OperandString),
	OpLoadLocal:           instr("load_local", OperandInt),
	OpLoadProp:            instr("load_prop", OperandString),
	OpLoadPropInd:         instr("load_prop_ind"),
	OpStoreOption:         instr("store_option", OperandInt),
	OpStoreArg:            instr("store_arg", OperandString),
	OpNew:                 instr("new", OperandString, OperandInt),
	OpNewInd:              instr("new_ind", OperandInt),
	OpNewBoxArgs:          instr("new_box_args", OperandString),
	OpSuperNew:            instr("super_new", OperandString, OperandInt),
	OpSuperNewBoxArgs:     instr("super_new_box_args", OperandString),
	OpWrite:               instr("write"),
	OpWriteOpt:            instr("write_opt"),
	OpMap:                 instr("map"),
	OpRotMap:              instr("rot_map", OperandInt),
	OpZipMap:              instr("zip_map", OperandInt),
	OpBr:                  instr("br", OperandAddr),
	OpBrf:                 instr("brf", OperandAddr),
	OpOptions:             instr("options"),
	OpArgs:                instr("args"),
	OpPassthru:            instr("passthru", OperandString),
	opReservedPassthruInd: instr("<reserved:passthru_ind>"),
	OpList:                instr("list"),
	OpAdd:                 instr("add"),
	OpToStr:               instr("tostr"),
	OpFirst:               instr("first"),
	OpLast:                instr("last"),
	OpRest:                instr("rest"),
	OpTrunc:               instr("trunc"),
	OpStrip:               instr("strip"),
	OpTrim:                instr("trim"),
	OpLength:              instr("length"),
	OpStrlen:              instr("strlen"),
	OpReverse:             instr("reverse"),
	OpNot:                 instr("not"),
	OpOr:                  instr("or"),
	OpAnd:                 instr("and"),
	OpIndent:              instr("indent", OperandString),
	OpDedent:              instr("dedent"),
	OpNewline:             instr("newline"),
	OpNoop:                instr("noop"),
	OpPop:                 instr("pop"),
	OpNull:                instr("null"),
	OpTrue:                instr("true"),
	OpFalse:               instr("false"),
	OpWriteStr:            instr("write_str", OperandString),
	OpWriteLocal:          instr("write_local", OperandInt),
}

// InstrLen returns the total encoded length (opcode byte + operand bytes)
// of an instruction with opcode op.
func InstrLen(op Opcode) int {
	info := Instructions[op]
	return 1 + info.NOpnds*OperandSizeBytes
}
