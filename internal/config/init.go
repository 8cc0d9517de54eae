package config

import (
	"fmt"
	"os"
)

const starterConfig = `# dochub configuration
packages_dir: packages

compiler:
  binary: doccompile
  config_file: docs.yaml
  timeout_seconds: 600
  grace_seconds: 10

build:
  max_parallel: 4
  report_path: build-report.json
  history_db: dochub-history.db

hub:
  dir: hub
  title: Documentation Hub

# classifier:
#   patterns:
#     - category: template
#       substrings: ["theme not found"]

# events:
#   enabled: true
#   url: nats://localhost:4222
#   subject: dochub.builds

# daemon:
#   interval_seconds: 900
#   watch: true
#   metrics_listen: ":9180"
`

// Init writes a starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	return os.WriteFile(configPath, []byte(starterConfig), 0o644)
}
