// Package utils holds small helpers shared by templ components.
package utils

import (
	twmerge "github.com/Oudwins/tailwind-merge-go"
)

// TwMerge merges Tailwind class lists, later classes winning conflicts.
func TwMerge(classes ...string) string {
	return twmerge.Merge(classes...)
}
