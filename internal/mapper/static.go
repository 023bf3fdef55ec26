package mapper

import (
	"go.uber.org/zap"

	"github.com/aulemarouille/green-spots-back/internal/model"
)

// RecordsToSpots maps raw static dataset records to Spots. Records that fail
// validation are logged and skipped; the batch never aborts. No
// deduplication happens here: the static datasets are curated by hand.
func RecordsToSpots(raws []model.RawSpot) []model.Spot {
	spots := make([]model.Spot, 0, len(raws))

	for _, raw := range raws {
		spot, err := model.NewSpot(raw)
		if err != nil {
			zap.L().Warn("skipping invalid static spot", zap.Error(err))
			continue
		}
		spots = append(spots, spot)
	}

	return spots
}
