package launcher

import (
	"encoding/json"
	"fmt"
)

func marshalBootstrap(cfg BootstrapConfig) ([]byte, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("launcher: encode bootstrap config: %w", err)
	}
	return data, nil
}

func unmarshalBootstrap(raw string) (BootstrapConfig, error) {
	var cfg BootstrapConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return BootstrapConfig{}, fmt.Errorf("launcher: decode bootstrap config: %w", err)
	}
	return cfg, nil
}
