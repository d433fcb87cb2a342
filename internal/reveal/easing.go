package reveal

import "github.com/ivlev/comment2video/internal/config"

// ease maps a linear ramp fraction in [0,1] onto the configured curve.
// Both curves are monotone and fix 0 and 1.
func ease(e config.Easing, t float64) float64 {
	t = clamp01(t)
	if e == config.EaseCubic {
		return easeInOutCubic(t)
	}
	return t
}

func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
