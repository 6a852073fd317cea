// Package config resolves runtime settings from, in increasing precedence,
// built-in defaults, an optional YAML file named by ROUTEPREP_CONFIG, and
// environment variables (a .env file is loaded first when present).
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ORS struct {
	APIKey        string  `yaml:"api_key"`
	BaseURL       string  `yaml:"base_url"`
	Profile       string  `yaml:"profile"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Country       string  `yaml:"country"`
}

type PostGIS struct {
	Table      string `yaml:"table"`
	IDColumn   string `yaml:"id_column"`
	GeomColumn string `yaml:"geom_column"`
}

type Config struct {
	Concurrency     int           `yaml:"concurrency"`
	RouteTimeout    time.Duration `yaml:"route_timeout"`
	SpeedKPH        float64       `yaml:"speed_kph"`
	LocalIterations int           `yaml:"local_iterations"`
	NextmvLimit     time.Duration `yaml:"nextmv_limit"`
	MaxMatchMeters  float64       `yaml:"max_match_meters"`
	DepartAt        string        `yaml:"depart_at"`
	DatabaseURL     string        `yaml:"database_url"`
	RedisURL        string        `yaml:"redis_url"`
	RedisTTL        time.Duration `yaml:"redis_ttl"`
	MetricsTextfile string        `yaml:"metrics_textfile"`
	ORS             ORS           `yaml:"ors"`
	PostGIS         PostGIS       `yaml:"postgis"`
}

func Default() Config {
	return Config{
		Concurrency:     2,
		RouteTimeout:    2 * time.Minute,
		SpeedKPH:        30,
		LocalIterations: 50,
		NextmvLimit:     10 * time.Second,
		MaxMatchMeters:  500,
		RedisTTL:        24 * time.Hour,
		ORS: ORS{
			BaseURL:       "https://api.openrouteservice.org",
			Profile:       "driving-car",
			RatePerSecond: 0.6,
		},
		PostGIS: PostGIS{Table: "streets", IDColumn: "id", GeomColumn: "geom"},
	}
}

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// Load reads .env, the optional YAML file and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg := Default()
	if path := Get("ROUTEPREP_CONFIG", ""); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config: parse %q: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		*dst = Get(key, *dst)
	}
	setInt := func(key string, dst *int) {
		if v := Get(key, ""); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := Get(key, ""); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := Get(key, ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setInt("ROUTEPREP_CONCURRENCY", &c.Concurrency)
	setDuration("ROUTEPREP_ROUTE_TIMEOUT", &c.RouteTimeout)
	setFloat("ROUTEPREP_SPEED_KPH", &c.SpeedKPH)
	setInt("ROUTEPREP_ITERATIONS", &c.LocalIterations)
	setDuration("NEXTMV_LIMIT", &c.NextmvLimit)
	setFloat("ROUTEPREP_MAX_MATCH_METERS", &c.MaxMatchMeters)
	setString("ROUTEPREP_DEPART_AT", &c.DepartAt)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("REDIS_URL", &c.RedisURL)
	setDuration("REDIS_TTL", &c.RedisTTL)
	setString("METRICS_TEXTFILE", &c.MetricsTextfile)
	setString("ORS_API_KEY", &c.ORS.APIKey)
	setString("ORS_BASE_URL", &c.ORS.BaseURL)
	setString("ORS_PROFILE", &c.ORS.Profile)
	setFloat("ORS_RATE", &c.ORS.RatePerSecond)
	setString("ORS_COUNTRY", &c.ORS.Country)
	setString("POSTGIS_TABLE", &c.PostGIS.Table)
	setString("POSTGIS_ID_COLUMN", &c.PostGIS.IDColumn)
	setString("POSTGIS_GEOM_COLUMN", &c.PostGIS.GeomColumn)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch {
	case c.Concurrency < 1:
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	case c.RouteTimeout <= 0:
		return fmt.Errorf("config: route timeout must be positive, got %s", c.RouteTimeout)
	case c.SpeedKPH <= 0:
		return fmt.Errorf("config: speed must be positive, got %v", c.SpeedKPH)
	}
	if _, err := c.DepartTime(time.Time{}); err != nil {
		return err
	}
	return nil
}

// DepartTime parses DepartAt as RFC3339, returning fallback when unset.
func (c *Config) DepartTime(fallback time.Time) (time.Time, error) {
	if strings.TrimSpace(c.DepartAt) == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, c.DepartAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: depart_at: %w", err)
	}
	return t, nil
}
