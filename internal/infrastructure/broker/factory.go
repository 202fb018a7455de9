// Package broker selects the transport implementation for the configured broker kind.
package broker

import (
	"fmt"
	"strings"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/broker/mqtt"
	"github.com/alissayuxuan/OMNI-SYS/internal/infrastructure/broker/natsbroker"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/config"
	"github.com/alissayuxuan/OMNI-SYS/internal/shared/logger"
)

// NewTransportFactory returns the factory for cfg.Kind. An empty kind means MQTT.
func NewTransportFactory(cfg config.BrokerConfig, log logger.Interface) (comm.TransportFactory, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", config.BrokerKindMQTT:
		return mqtt.NewFactory(cfg, log), nil
	case config.BrokerKindNATS:
		return natsbroker.NewFactory(cfg, log), nil
	default:
		return nil, fmt.Errorf("unsupported broker kind %q", cfg.Kind)
	}
}
