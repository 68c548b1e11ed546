package processor

import "math"

// Score is the Indel similarity of two names as a percentage:
// 100 * 2*LCS / (len(a) + len(b)) over runes, rounded half to even.
// Case and whitespace sensitive. Two empty strings score 100.
func Score(extracted, claimed string) int {
	a, b := []rune(extracted), []rune(claimed)
	total := len(a) + len(b)
	if total == 0 {
		return 100
	}
	lcs := longestCommonSubsequence(a, b)
	return int(math.RoundToEven(100 * float64(2*lcs) / float64(total)))
}

func longestCommonSubsequence(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
