package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a starter config in the given format (toml or yaml).
func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml", "":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("unknown config format: %s", format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `[log]
level = "info"

[http]
addr = ":8080"
cors_origins = ["http://localhost:3000"]

[[devices]]
name = "left"
transport = "socket"
address = "192.168.4.21"
side = "left"
reconnect = true

[devices.sensors.pressure]
pressureSingleByte = 20

[devices.sensors.motion]
quaternion = 40

[[devices]]
name = "right"
transport = "socket"
address = "192.168.4.22"
side = "right"
reconnect = true

[devices.sensors.pressure]
pressureSingleByte = 20

[relay]
buffer = 1024
types = ["pressure", "pair.pressure", "weight", "wifimacaddress"]
`

const yamlTemplate = `log:
  level: info
http:
  addr: ":8080"
  cors_origins: ["http://localhost:3000"]
devices:
  - name: left
    transport: socket
    address: 192.168.4.21
    side: left
    reconnect: true
    sensors:
      pressure:
        pressureSingleByte: 20
      motion:
        quaternion: 40
  - name: right
    transport: socket
    address: 192.168.4.22
    side: right
    reconnect: true
    sensors:
      pressure:
        pressureSingleByte: 20
relay:
  buffer: 1024
  types: [pressure, pair.pressure, weight, wifimacaddress]
`
