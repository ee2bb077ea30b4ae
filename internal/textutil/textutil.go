// Package textutil holds the text normalization and similarity helpers shared
// by answer grading and multiple-choice deduplication. Every comparison in
// the practice core goes through Normalize so that "correct" means the same
// thing everywhere.
package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace runs to single spaces, trims, and lowercases.
func Normalize(s string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Similarity returns the Ratcliff-Obershelp ratio between a and b:
// 2*M / (len(a)+len(b)), where M is the total length of the matching blocks
// found by repeatedly taking the longest common substring and recursing on
// the pieces to its left and right. Symmetric, in [0, 1], 1.0 for identical
// strings. Two empty strings are identical.
//
// Callers grade against a fixed threshold (0.85), so the exact block-finding
// rule matters: ties on length are broken by the earliest position in a.
func Similarity(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingBlocks(ar, br)) / float64(total)
}

func matchingBlocks(a, b []rune) int {
	aStart, bStart, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	m := size
	m += matchingBlocks(a[:aStart], b[:bStart])
	m += matchingBlocks(a[aStart+size:], b[bStart+size:])
	return m
}

// longestMatch finds the longest common substring of a and b by dynamic
// programming over b-rune positions, O(len(a)*len(b)) time.
func longestMatch(a, b []rune) (aStart, bStart, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}
	// lengths[j] = length of the common substring ending at a[i-1], b[j-1].
	lengths := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0 // lengths[j-1] from the previous row
		for j := 1; j <= len(b); j++ {
			cur := lengths[j]
			if a[i-1] == b[j-1] {
				lengths[j] = prev + 1
				if lengths[j] > size {
					size = lengths[j]
					aStart = i - size
					bStart = j - size
				}
			} else {
				lengths[j] = 0
			}
			prev = cur
		}
	}
	return aStart, bStart, size
}
