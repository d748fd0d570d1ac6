// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

// ClampLimit normalizes a caller-supplied page size: non-positive values
// fall back to def, values above max are capped at max.
//
// Example:
//
//	n := utils.ClampLimit(0, 20, 200)   // returns 20
//	n = utils.ClampLimit(50, 20, 200)   // returns 50
//	n = utils.ClampLimit(999, 20, 200)  // returns 200
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
