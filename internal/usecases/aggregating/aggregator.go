package aggregating

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/internal/domain"
)

// Aggregate soma os itens de relatório por (conta, data). Itens sem conta ou
// com data inválida são descartados sem interromper o lote.
func Aggregate(items []domain.LineItem) map[domain.StatKey]domain.Metrics {
	stats := make(map[domain.StatKey]domain.Metrics, len(items))
	dropped := 0

	for _, item := range items {
		if item.AccountID == "" || item.Date == "" {
			dropped++
			continue
		}

		date, err := time.Parse(time.DateOnly, item.Date)
		if err != nil {
			dropped++
			continue
		}

		key := domain.NewStatKey(item.AccountID, date)
		stats[key] = stats[key].Add(item.Metrics)
	}

	if dropped > 0 {
		logrus.WithField("dropped", dropped).Debug("aggregator: itens sem conta ou data descartados")
	}

	return stats
}

// Merge acumula src em dst; a ordem das chamadas não altera o resultado
func Merge(dst, src map[domain.StatKey]domain.Metrics) {
	for key, metrics := range src {
		dst[key] = dst[key].Add(metrics)
	}
}
