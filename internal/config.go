package internal

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ideashare/internal/docstore"
	"github.com/starford/ideashare/internal/feed"
	"github.com/starford/ideashare/internal/feedback"
	"github.com/starford/ideashare/internal/geo"
	"github.com/starford/ideashare/internal/ideas"
	"github.com/starford/ideashare/internal/ideaservice"
	"github.com/starford/ideashare/internal/moderation"
	"github.com/starford/ideashare/internal/votes"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Document store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Auth       AuthConfig        `yaml:"auth"`
	Local      LocalConfig       `yaml:"local"`
	DocStore   DocStoreConfig    `yaml:"docstore"`
	Voting     VotingConfig      `yaml:"voting"`
	Feed       FeedConfig        `yaml:"feed"`
	Geo        GeoConfig         `yaml:"geo"`
	Moderation ModerationConfig  `yaml:"moderation"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Auth, &c.Local, &c.DocStore, &c.Voting, &c.Feed, &c.Geo, &c.Moderation,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// Timezone names the IANA zone whose midnight starts a new submission day.
	// Empty means the host's local zone.
	Timezone string     `yaml:"timezone"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("app: timezone: %w", err)
	}
	return c.HTTP.Validate()
}

// Location resolves Timezone.
func (c *ApplicationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// LocalConfig locates the per-client key-value file.
type LocalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the local store configuration.
func (c *LocalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DocStoreConfig selects and configures the shared idea store.
type DocStoreConfig struct {
	Driver             string       `yaml:"driver"`
	SQLite             SQLiteConfig `yaml:"sqlite"`
	Mongo              MongoConfig  `yaml:"mongo"`
	Collection         string       `yaml:"collection"`
	FeedbackCollection string       `yaml:"feedback_collection"`
	// Indexes lists the composite indexes to declare on Collection, one field
	// list per index.
	Indexes [][]string `yaml:"indexes"`
}

// Validate validates the document store configuration.
func (c *DocStoreConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverMongo)),
		validation.Field(&c.Collection, validation.Required, validation.By(identifier)),
		validation.Field(&c.FeedbackCollection, validation.Required, validation.By(identifier)),
	); err != nil {
		return fmt.Errorf("docstore: %w", err)
	}
	if _, err := c.IndexSet(); err != nil {
		return err
	}
	if c.Driver == DriverMongo {
		return c.Mongo.Validate()
	}
	return c.SQLite.Validate()
}

// IndexSet builds the declared indexes.
func (c *DocStoreConfig) IndexSet() (*docstore.IndexSet, error) {
	indexes := make([]docstore.Index, 0, len(c.Indexes))
	for _, fields := range c.Indexes {
		indexes = append(indexes, docstore.Index{Collection: c.Collection, Fields: fields})
	}
	return docstore.NewIndexSet(indexes)
}

func identifier(value any) error {
	s, _ := value.(string)
	if !docstore.ValidIdent(s) {
		return fmt.Errorf("must be a plain identifier")
	}
	return nil
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an http(s) URL")
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Validate validates the MongoDB configuration.
func (c *MongoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URI, validation.Required),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.ConnectTimeout, validation.Min(time.Duration(0))),
	)
}

// VotingConfig selects how vote writes are applied.
type VotingConfig struct {
	Mode        string `yaml:"mode"`
	MaxAttempts int    `yaml:"max_attempts"`
}

// Validate validates the voting configuration.
func (c *VotingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(string(votes.ModeCAS), string(votes.ModeOverwrite))),
		validation.Field(&c.MaxAttempts, validation.Min(1), validation.Max(50)),
	)
}

// FeedConfig holds the feed geometry and load size.
type FeedConfig struct {
	ItemHeight  int `yaml:"item_height"`
	Visible     int `yaml:"visible"`
	Buffer      int `yaml:"buffer"`
	Threshold   int `yaml:"threshold"`
	PageSize    int `yaml:"page_size"`
	MaxPageSize int `yaml:"max_page_size"`
}

// Geometry converts the config into feed geometry.
func (c *FeedConfig) Geometry() feed.Geometry {
	return feed.Geometry{
		ItemHeight:     c.ItemHeight,
		ViewportHeight: c.ItemHeight * c.Visible,
		Buffer:         c.Buffer,
		Threshold:      c.Threshold,
	}
}

// Validate validates the feed configuration.
func (c *FeedConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Visible, validation.Required, validation.Min(1)),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxPageSize, validation.Required, validation.Min(c.PageSize)),
	); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	g := c.Geometry()
	if err := g.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return nil
}

// GeoConfig controls country lookup.
type GeoConfig struct {
	Enabled     bool   `yaml:"enabled"`
	PrimaryURL  string `yaml:"primary_url"`
	FallbackURL string `yaml:"fallback_url"`
}

// Validate validates the geolocation configuration.
func (c *GeoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PrimaryURL, validation.When(c.Enabled, validation.Required), validation.By(httpURL)),
		validation.Field(&c.FallbackURL, validation.By(httpURL)),
	)
}

// ModerationConfig controls the remote profanity check.
type ModerationConfig struct {
	RemoteEnabled bool   `yaml:"remote_enabled"`
	RemoteURL     string `yaml:"remote_url"`
}

// Validate validates the moderation configuration.
func (c *ModerationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RemoteURL, validation.When(c.RemoteEnabled, validation.Required), validation.By(httpURL)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	g := feed.DefaultGeometry()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Local: LocalConfig{
			Path: "./ideashare-local.yaml",
		},
		DocStore: DocStoreConfig{
			Driver: DriverSQLite,
			SQLite: SQLiteConfig{
				Path: "./ideashare.db",
			},
			Mongo: MongoConfig{
				Database:       "ideashare",
				ConnectTimeout: 10 * time.Second,
			},
			Collection:         ideas.DefaultCollection,
			FeedbackCollection: feedback.DefaultCollection,
			Indexes: [][]string{
				{"authorId", "createdAt"},
				{"totalVotes", "createdAt"},
			},
		},
		Voting: VotingConfig{
			Mode:        string(votes.ModeCAS),
			MaxAttempts: votes.DefaultMaxAttempts,
		},
		Feed: FeedConfig{
			ItemHeight:  g.ItemHeight,
			Visible:     g.ViewportHeight / g.ItemHeight,
			Buffer:      g.Buffer,
			Threshold:   g.Threshold,
			PageSize:    ideaservice.DefaultPageSize,
			MaxPageSize: ideaservice.DefaultMaxPageSize,
		},
		Geo: GeoConfig{
			Enabled:     true,
			PrimaryURL:  geo.DefaultPrimaryURL,
			FallbackURL: geo.DefaultFallbackURL,
		},
		Moderation: ModerationConfig{
			RemoteEnabled: true,
			RemoteURL:     moderation.DefaultRemoteURL,
		},
	}
}
