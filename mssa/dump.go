package mssa

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/tools/go/ssa"
)

// DefString renders a def node: ENCHI(MR_1V_1 = MR_1V_0),
// STCHI(MR_1V_2 = MR_1V_1), CALCHI(MR_1V_3 = MR_1V_2) or
// PHI(MR_1V_4 = MR_1V_2, MR_1V_3) with one operand per predecessor.
func (f *Func) DefString(id DefID) string {
	d := &f.defs[id]
	if d.Kind == DefPhi {
		opds := make([]string, len(d.Opds))
		for i, op := range d.Opds {
			opds[i] = f.VerString(op)
		}
		return fmt.Sprintf("%s(%s = %s)", d.Kind, f.VerString(d.Res), strings.Join(opds, ", "))
	}
	return fmt.Sprintf("%s(%s = %s)", d.Kind, f.VerString(d.Res), f.VerString(d.Op))
}

// UseString renders a use node: LDMU(MR_1V_2), CALMU(MR_1V_2) or
// RETMU(MR_1V_2).
func (f *Func) UseString(id UseID) string {
	u := &f.uses[id]
	return fmt.Sprintf("%s(%s)", u.Kind, f.VerString(u.Ver))
}

// WriteTo writes the memory SSA form of the function to w, interleaving mu,
// chi and phi lines with the instructions they attach to: entry chis first,
// then each block with its phis, each instruction preceded by its mus and
// followed by its chis, and the return mus last.
func (f *Func) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "==========FUNCTION: %s==========\n", color.YellowString(f.Fn.String()))
	for _, id := range f.entryChis {
		fmt.Fprintln(&buf, f.DefString(id))
	}
	for _, b := range f.Fn.Blocks {
		fmt.Fprintf(&buf, "%d.%s\n", b.Index, b.Comment)
		for _, id := range f.blockPhis[b] {
			fmt.Fprintln(&buf, f.DefString(id))
		}
		lastIsChi := false
		for _, instr := range b.Instrs {
			mus, chis := f.nodesOf(instr)
			// A blank line sets mu groups off from plain instructions; a
			// group that just ended in a chi already printed one.
			if len(mus) > 0 && !lastIsChi {
				fmt.Fprintln(&buf)
			}
			for _, id := range mus {
				fmt.Fprintln(&buf, f.UseString(id))
			}
			writeInstr(&buf, instr)
			for _, id := range chis {
				fmt.Fprintln(&buf, f.DefString(id))
			}
			if lastIsChi = len(chis) > 0; lastIsChi {
				fmt.Fprintln(&buf)
			}
		}
	}
	for _, id := range f.retMus {
		fmt.Fprintln(&buf, f.UseString(id))
	}
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (f *Func) nodesOf(instr ssa.Instruction) ([]UseID, []DefID) {
	if call, ok := instr.(ssa.CallInstruction); ok {
		return f.callMus[call], f.callChis[call]
	}
	return f.instrMus[instr], f.instrChis[instr]
}

func writeInstr(w io.Writer, instr ssa.Instruction) {
	if v, ok := instr.(ssa.Value); ok {
		fmt.Fprintf(w, "\t%s = %s\n", v.Name(), v.String())
		return
	}
	fmt.Fprintf(w, "\t%s\n", instr)
}
