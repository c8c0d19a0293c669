//go:build !race

package signin

func passwordHashCost() int {
	return 12
}
