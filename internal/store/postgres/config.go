package postgres

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

type Config struct {
	Host     string `yaml:"host" mapstructure:"host" default:"localhost"`
	Port     int    `yaml:"port" mapstructure:"port" default:"5432"`
	Name     string `yaml:"name" mapstructure:"name" default:"marmot"`
	User     string `yaml:"user" mapstructure:"user" default:"root"`
	Password string `yaml:"password" mapstructure:"password" default:""`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode" default:"disable"`
	// QueryTimeout bounds every statement issued by the repositories.
	QueryTimeout    time.Duration `yaml:"query_timeout" mapstructure:"query_timeout" default:"10s"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime" default:"30m"`
}

// ConnectionURL
func (c *Config) ConnectionURL() *url.URL {
	pgURL := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		User:   url.UserPassword(c.User, c.Password),
		Path:   c.Name,
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := pgURL.Query()
	q.Add("sslmode", sslMode)
	pgURL.RawQuery = q.Encode()

	return pgURL
}
