package modeling

import (
	"math"

	"FinSignal/internal/domain/models"
)

// DetermineSignal maps a probability onto a direction and a confidence in
// [0, 100] rounded to two decimals.
func DetermineSignal(p, longThreshold, shortThreshold float64) (models.SignalKind, float64) {
	conf := math.Round(math.Abs(p-0.5)*200*100) / 100
	switch {
	case p >= longThreshold:
		return models.SignalLong, conf
	case p <= shortThreshold:
		return models.SignalShort, conf
	default:
		return models.SignalNeutral, conf
	}
}
