package fuelstock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gofalre.io/fuelstock/models"
)

// DefaultPollInterval 舊版儀表板每 10 到 15 秒重新查詢一次
const DefaultPollInterval = 15 * time.Second

type AlertSource interface {
	LowStockAlerts(ctx context.Context) ([]models.LowStockAlert, error)
}

// AlertMonitor polls LowStockAlerts on a fixed interval, logs alerts that
// appear or clear between polls and passes every snapshot to OnAlerts.
type AlertMonitor struct {
	source   AlertSource
	interval time.Duration
	logger   *zap.Logger

	// OnAlerts 每次輪詢成功後呼叫，可為 nil
	OnAlerts func([]models.LowStockAlert)

	active map[string]models.LowStockAlert
}

func NewAlertMonitor(source AlertSource, interval time.Duration, logger *zap.Logger) *AlertMonitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &AlertMonitor{
		source:   source,
		interval: interval,
		logger:   logger,
		active:   make(map[string]models.LowStockAlert),
	}
}

// Run polls immediately and then on every tick until ctx is done.
func (m *AlertMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Poll(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll runs a single poll. Storage failures are logged; the previous alert set is kept.
func (m *AlertMonitor) Poll(ctx context.Context) {
	alerts, err := m.source.LowStockAlerts(ctx)
	if err != nil {
		m.logger.Error("failed to poll low stock alerts", zap.Error(err))
		return
	}

	current := make(map[string]models.LowStockAlert, len(alerts))
	for _, alert := range alerts {
		current[alert.Product] = alert
		if _, seen := m.active[alert.Product]; !seen {
			m.logger.Warn("low stock",
				zap.String("product", alert.Product),
				zap.String("quantity", alert.Quantity.String()),
				zap.String("reorder_level", alert.ReorderLevel.String()),
				zap.String("alert", alert.String()))
		}
	}
	for product := range m.active {
		if _, still := current[product]; !still {
			m.logger.Info("low stock cleared", zap.String("product", product))
		}
	}
	m.active = current

	if m.OnAlerts != nil {
		m.OnAlerts(alerts)
	}
}
