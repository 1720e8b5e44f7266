package solana

import (
	"regexp"
	"strconv"

	"solana-fee-lab/internal/domain"
)

var (
	consumedRe = regexp.MustCompile(`consumed (\d+) of (\d+) compute units`)
	invokeRe   = regexp.MustCompile(`^Program (\S+) invoke \[(\d+)\]$`)
	programRe  = regexp.MustCompile(`^Program (\S+) consumed (\d+) of (\d+) compute units$`)
	exitRe     = regexp.MustCompile(`^Program (\S+) (success|failed)`)
)

// ParseConsumedUnits returns the units of the first "consumed N of M compute
// units" line, and whether one was found.
func ParseConsumedUnits(lines []string) (consumed, limit int64, ok bool) {
	for _, line := range lines {
		m := consumedRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		units, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		lim, _ := strconv.ParseInt(m[2], 10, 64)
		return units, lim, true
	}
	return 0, 0, false
}

// ParseInstructionUsage attributes consumed units to top-level instructions.
// Inner invocations are folded into their parent. Builtin programs that do
// not log consumption are reported with zero units. Best-effort: truncated
// logs yield a partial breakdown.
func ParseInstructionUsage(lines []string) []domain.InstructionUsage {
	var out []domain.InstructionUsage
	depth := 0

	for _, line := range lines {
		if m := invokeRe.FindStringSubmatch(line); m != nil {
			d, _ := strconv.Atoi(m[2])
			if d == 1 {
				out = append(out, domain.InstructionUsage{Index: len(out), ProgramID: m[1]})
			}
			depth = d
			continue
		}
		if m := programRe.FindStringSubmatch(line); m != nil {
			if depth == 1 && len(out) > 0 && out[len(out)-1].ProgramID == m[1] {
				units, _ := strconv.ParseInt(m[2], 10, 64)
				out[len(out)-1].UnitsConsumed = units
			}
			continue
		}
		if exitRe.MatchString(line) && depth > 0 {
			depth--
		}
	}
	return out
}

// SumInstructionUnits totals the units of a breakdown.
func SumInstructionUnits(usage []domain.InstructionUsage) int64 {
	var total int64
	for _, u := range usage {
		total += u.UnitsConsumed
	}
	return total
}
