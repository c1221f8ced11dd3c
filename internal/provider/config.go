package provider

import (
	"fmt"
	"time"

	"github.com/goto/pulumi-marmot/pkg/retry"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/common/resource/plugin"
	pulumirpc "github.com/pulumi/pulumi/sdk/v3/proto/go"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DriverCatalog  = "catalog"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	configHost   = "host"
	configAPIKey = "apiKey"
)

// StoreConfig selects and tunes the backend the resources are stored in.
type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver" default:"catalog"`
	// Timeout bounds a single call to the catalog.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" default:"30s"`
	// AutoMigrate runs the postgres migrations when the provider is
	// configured.
	AutoMigrate bool         `yaml:"auto_migrate" mapstructure:"auto_migrate" default:"false"`
	Retry       retry.Config `yaml:"retry" mapstructure:"retry"`
}

func (c StoreConfig) validate() error {
	switch c.Driver {
	case DriverCatalog, DriverMemory, DriverPostgres:
		return nil
	}
	return fmt.Errorf("unknown store driver %q, expected one of %s, %s, %s",
		c.Driver, DriverCatalog, DriverMemory, DriverPostgres)
}

// providerConfig is what the Pulumi program sets on the provider.
type providerConfig struct {
	Host   string
	APIKey string
	// Unknown is set during previews when either value is not known yet.
	Unknown bool
}

var propertyOpts = plugin.MarshalOptions{
	KeepUnknowns: true,
	KeepSecrets:  true,
	SkipNulls:    true,
}

func unmarshal(s *structpb.Struct) (resource.PropertyMap, error) {
	if s == nil {
		return resource.PropertyMap{}, nil
	}
	return plugin.UnmarshalProperties(s, propertyOpts)
}

func marshal(pm resource.PropertyMap) (*structpb.Struct, error) {
	return plugin.MarshalProperties(pm, propertyOpts)
}

// parseConfigure reads host and apiKey from the configure args, falling
// back to the flattened marmot:config:* variables of older engines.
func parseConfigure(req *pulumirpc.ConfigureRequest) (providerConfig, error) {
	var cfg providerConfig
	if args := req.GetArgs(); args != nil {
		pm, err := unmarshal(args)
		if err != nil {
			return cfg, fmt.Errorf("decode configure args: %w", err)
		}
		cfg = configFromProperties(pm)
		if cfg.Host != "" || cfg.Unknown {
			return cfg, nil
		}
	}

	vars := req.GetVariables()
	cfg.Host = lookupVariable(vars, configHost)
	cfg.APIKey = lookupVariable(vars, configAPIKey)
	return cfg, nil
}

func lookupVariable(vars map[string]string, key string) string {
	for _, k := range []string{packageName + ":config:" + key, packageName + ":" + key} {
		if v, ok := vars[k]; ok {
			return v
		}
	}
	return ""
}

func configFromProperties(pm resource.PropertyMap) providerConfig {
	var cfg providerConfig
	for key, dst := range map[resource.PropertyKey]*string{configHost: &cfg.Host, configAPIKey: &cfg.APIKey} {
		pv, ok := pm[key]
		if !ok {
			continue
		}
		if pv.ContainsUnknowns() {
			cfg.Unknown = true
			continue
		}
		if pv = unwrap(pv); pv.IsString() {
			*dst = pv.StringValue()
		}
	}
	return cfg
}

// checkConfig reports missing provider settings.
func checkConfig(news resource.PropertyMap) []*pulumirpc.CheckFailure {
	cfg := configFromProperties(news)
	var failures []*pulumirpc.CheckFailure
	for key, val := range map[string]string{configHost: cfg.Host, configAPIKey: cfg.APIKey} {
		if val != "" || news[resource.PropertyKey(key)].ContainsUnknowns() {
			continue
		}
		failures = append(failures, &pulumirpc.CheckFailure{
			Property: key,
			Reason:   fmt.Sprintf("missing required configuration %s:%s", packageName, key),
		})
	}
	sortFailures(failures)
	return failures
}
