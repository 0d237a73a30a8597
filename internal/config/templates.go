package config

import (
	"fmt"
	"os"
)

// Template returns a commented tap config that loads to the defaults.
func Template() string {
	return tapTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(tapTemplate), 0o600)
}

const tapTemplate = `# client-facing listener
listen = "127.0.0.1:5673"
# broker the relay dials for every session
upstream = "127.0.0.1:5672"
# health, metrics and sessions; empty disables it
admin_addr = "127.0.0.1:15673"
admin_cors_origins = []
# bearer token required on /sessions; empty leaves it open
admin_token = ""
# largest accepted frame body in bytes, 0 for no limit
max_frame_size = 131072
handshake_timeout = "10s"
log_level = "info"

[dial]
connect_timeout = "5s"
attempts = 3
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true

[credentials]
username = "guest"
password = "guest"

[defaults]
vhost = "/"
locale = "en_US"
mechanism = "PLAIN"
channel_max = 2047
frame_max = 131072
heartbeat = "60s"
product = "amqpwire"
`
