package common

import "os"

const trueStr = "true"

// ConfigEnvVar points at a config file when --config is not given
const ConfigEnvVar = "KCL_NAVIGATOR_CONFIG"

// EnvOrDefault returns the value of key, or def when it is unset or empty
func EnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
