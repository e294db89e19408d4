package algorithms

import "math"

// Round2 - округление до центов, половина вверх.
// Сначала гасим шум float (1.005*100 = 100.49999...), потом округляем.
func Round2(x float64) float64 {
	return math.Round(math.Round(x*1e6)/1e4) / 100
}

func round1(x float64) float64 {
	return math.Round(math.Round(x*1e6)/1e5) / 10
}

func toCents(x float64) int64 {
	return int64(math.Round(x * 100))
}
