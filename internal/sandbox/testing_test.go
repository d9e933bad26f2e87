package sandbox

import (
	"time"

	"github.com/ashureev/salesbot/internal/dataset"
	"github.com/ashureev/salesbot/internal/domain"
)

func fp(v float64) *float64 { return &v }

// salesTable returns three rows; the first has both prices zero.
func salesTable() *dataset.Table {
	day := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return dataset.NewTable([]domain.SalesRecord{
		{
			ProductID: "P1", Local: "SP", Date: &day,
			PlannedQuantity: fp(10), ActualQuantity: fp(8),
			PlannedPrice: fp(0), ActualPrice: fp(0),
			PromotionType: "sem promoção", FlagPrecoInvalido: true,
		},
		{
			ProductID: "P2", Local: "SP", Date: &day,
			PlannedQuantity: fp(5), ActualQuantity: fp(5),
			PlannedPrice: fp(2), ActualPrice: fp(2.5),
			PromotionType: "desconto",
		},
		{
			ProductID: "P3", Local: "RJ",
			PlannedQuantity: fp(1), ActualQuantity: nil,
			PlannedPrice: fp(4), ActualPrice: fp(4),
			PromotionType: "sem promoção",
		},
	})
}
