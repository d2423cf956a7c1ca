package bus

import (
	"fmt"
	"strings"

	"github.com/AlfRonDon/neurareport/internal/config"
)

// New creates a Bus based on configuration. Default is NATS when the type is
// not specified. instanceID distinguishes this service instance so broadcast
// backends that need per-consumer identity (Kafka groups) can derive one.
func New(cfg config.BusConfig, instanceID string) (Bus, error) {
	busType := strings.ToLower(cfg.Type)

	if busType == "" {
		busType = "nats"
	}

	switch busType {
	case "nats":
		return NewNATSBus(cfg.URL)

	case "redis":
		addr := cfg.URL
		if addr == "" {
			addr = "localhost:6379"
		}
		channel := cfg.RedisChannel
		if channel == "" {
			channel = "neurareport"
		}
		return NewRedisBus(addr, cfg.Password, cfg.RedisDB, channel)

	case "kafka":
		return NewKafkaBus(cfg.KafkaBrokers, instanceID)

	case "memory":
		return NewMemoryBus(), nil

	default:
		return nil, fmt.Errorf("unsupported bus type: %s (supported: nats, redis, kafka, memory)", busType)
	}
}
