package util

import "strings"

// StringSliceContains determines if a string is in a slice
func StringSliceContains(slice []string, item string) bool {
	if len(slice) == 0 {
		return false
	}

	for idx := range slice {
		if slice[idx] == item {
			return true
		}
	}

	return false
}

// StringSliceIntersection returns the elements of b that are also in a, in
// the order of b.
func StringSliceIntersection(a, b []string) []string {
	inA := map[string]bool{}
	out := []string{}
	for _, elem := range a {
		inA[elem] = true
	}
	for _, elem := range b {
		if inA[elem] {
			out = append(out, elem)
		}
	}
	return out
}

// UniqueStrings takes a slice of strings and returns a new slice with duplicates removed.
// Order is preserved.
func UniqueStrings(slice []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, s := range slice {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// SplitCommas returns the slice of strings after splitting each string by
// commas. Surrounding whitespace is trimmed and empty entries are dropped.
func SplitCommas(originals []string) []string {
	splitted := []string{}
	for _, original := range originals {
		for _, part := range strings.Split(original, ",") {
			if part = strings.TrimSpace(part); part != "" {
				splitted = append(splitted, part)
			}
		}
	}
	return splitted
}

// CopyStrings returns a copy of the slice that does not share its backing
// array. A nil slice is copied to an empty one.
func CopyStrings(slice []string) []string {
	out := make([]string, len(slice))
	copy(out, slice)
	return out
}
