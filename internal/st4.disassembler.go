package internal

import (
	"fmt"
	"strings"
)

// Disassemble renders a CompiledST's bytecode as one mnemonic line per
// instruction, string-pool and address operands resolved to their
// source-level value, for the debug-trace CLI command.
func Disassemble(c *CompiledST) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:\n", c.Name)
	ip := 0
	for ip < len(c.Instrs) {
		op := Opcode(c.Instrs[ip])
		info := Instructions[op]
		fmt.Fprintf(&sb, "%04d  %-18s", ip, info.Name)
		at := ip + 1
		for i := 0; i < info.NOpnds; i++ {
			n := readU16(c.Instrs, at)
			switch info.Operand[i] {
			case OperandString:
				fmt.Fprintf(&sb, " %q", c.Strings.Get(n))
			case OperandAddr:
				fmt.Fprintf(&sb, " @%d", n)
			case OperandInt:
				fmt.Fprintf(&sb, " %d", n)
			}
			at += OperandSizeBytes
		}
		sb.WriteByte('\n')
		ip += InstrLen(op)
	}
	return sb.String()
}
