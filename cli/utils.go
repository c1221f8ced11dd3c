package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goto/pulumi-marmot/core/value"
	"github.com/goto/salt/log"
	"gopkg.in/yaml.v3"
)

func initLogger(logLevel string) *log.Logrus {
	// stdout belongs to the plugin handshake and command output
	logger := log.NewLogrus(
		log.LogrusWithLevel(logLevel),
		log.LogrusWithWriter(os.Stderr),
	)
	return logger
}

// parseFile decodes a json or yaml document into v. YAML goes through
// value.Value so mapping order survives into ordered maps.
func parseFile(filePath string, v interface{}) error {
	b, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	switch filepath.Ext(filePath) {
	case ".json":
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("invalid json: %w", err)
		}
	case ".yaml", ".yml":
		var doc value.Value
		if err := yaml.Unmarshal(b, &doc); err != nil {
			return fmt.Errorf("invalid yaml: %w", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("invalid yaml: %w", err)
		}
	default:
		return errors.New("unsupported file type")
	}

	return nil
}

func prettyPrint(i interface{}) string {
	s, _ := json.MarshalIndent(i, "", "\t")
	return string(s)
}
