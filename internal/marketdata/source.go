package marketdata

import (
	"fmt"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/database"
	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/redis"
)

// NewSource builds the configured price source, cached when redis is enabled
func NewSource(cfg *config.Config, db *database.DB, rc *redis.Client, log *logger.Logger) (contracts.PriceSource, error) {
	var src contracts.PriceSource
	switch cfg.MarketData.Source {
	case config.SourcePostgres:
		if db == nil {
			return nil, fmt.Errorf("market data source %q requires a database", cfg.MarketData.Source)
		}
		src = NewPostgresSource(db.Pool)
	default:
		src = NewSynthetic()
	}

	if rc.Enabled() {
		src = NewCached(src, redis.NewCache(rc, "hedgefund"), cfg.MarketData.CacheTTL, log)
	}
	return src, nil
}
