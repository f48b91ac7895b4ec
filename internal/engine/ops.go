package engine

import "github.com/roach88/irkit/internal/dialect/llvm"

// binaryFunc computes one llvm integer operation on operands of the given
// width. Operands and result are zero-extended to width.
type binaryFunc func(a, b uint64, width uint) (uint64, error)

var binaryOps = map[string]binaryFunc{
	llvm.AddOp: func(a, b uint64, w uint) (uint64, error) { return trunc(a+b, w), nil },
	llvm.SubOp: func(a, b uint64, w uint) (uint64, error) { return trunc(a-b, w), nil },
	llvm.MulOp: func(a, b uint64, w uint) (uint64, error) { return trunc(a*b, w), nil },
	llvm.AndOp: func(a, b uint64, w uint) (uint64, error) { return a & b, nil },
	llvm.OrOp:  func(a, b uint64, w uint) (uint64, error) { return a | b, nil },
	llvm.XOrOp: func(a, b uint64, w uint) (uint64, error) { return a ^ b, nil },

	llvm.UDivOp: func(a, b uint64, w uint) (uint64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a / b, nil
	},
	llvm.URemOp: func(a, b uint64, w uint) (uint64, error) {
		if b == 0 {
			return 0, errDivideByZero
		}
		return a % b, nil
	},
	llvm.SDivOp: func(a, b uint64, w uint) (uint64, error) {
		x, y, err := signedOperands(a, b, w)
		if err != nil {
			return 0, err
		}
		return trunc(uint64(x/y), w), nil
	},
	llvm.SRemOp: func(a, b uint64, w uint) (uint64, error) {
		x, y, err := signedOperands(a, b, w)
		if err != nil {
			return 0, err
		}
		return trunc(uint64(x%y), w), nil
	},

	// Shift amounts of width or more shift every bit out.
	llvm.ShlOp: func(a, b uint64, w uint) (uint64, error) {
		if b >= uint64(w) {
			return 0, nil
		}
		return trunc(a<<b, w), nil
	},
	llvm.LShrOp: func(a, b uint64, w uint) (uint64, error) {
		if b >= uint64(w) {
			return 0, nil
		}
		return a >> b, nil
	},
	llvm.AShrOp: func(a, b uint64, w uint) (uint64, error) {
		if b >= uint64(w) {
			b = uint64(w) - 1
		}
		return trunc(uint64(sext(a, w)>>b), w), nil
	},
}

// signedOperands sign-extends the operands of a signed division and
// rejects the trapping cases.
func signedOperands(a, b uint64, w uint) (int64, int64, error) {
	if b == 0 {
		return 0, 0, errDivideByZero
	}
	x, y := sext(a, w), sext(b, w)
	if y == -1 && x == minSigned(w) {
		return 0, 0, errSignedOverflow
	}
	return x, y, nil
}

func minSigned(w uint) int64 {
	return sext(uint64(1)<<(w-1), w)
}

// comparisons evaluates llvm.icmp predicates.
var comparisons = map[string]func(a, b uint64, w uint) bool{
	"eq":  func(a, b uint64, w uint) bool { return a == b },
	"ne":  func(a, b uint64, w uint) bool { return a != b },
	"ult": func(a, b uint64, w uint) bool { return a < b },
	"ule": func(a, b uint64, w uint) bool { return a <= b },
	"ugt": func(a, b uint64, w uint) bool { return a > b },
	"uge": func(a, b uint64, w uint) bool { return a >= b },
	"slt": func(a, b uint64, w uint) bool { return sext(a, w) < sext(b, w) },
	"sle": func(a, b uint64, w uint) bool { return sext(a, w) <= sext(b, w) },
	"sgt": func(a, b uint64, w uint) bool { return sext(a, w) > sext(b, w) },
	"sge": func(a, b uint64, w uint) bool { return sext(a, w) >= sext(b, w) },
}

func boolSlot(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
