package database

// Config holds database connection settings.
type Config struct {
	Host           string `yaml:"host" envconfig:"POSTGRES_HOST"`
	Port           string `yaml:"port" envconfig:"POSTGRES_PORT"`
	User           string `yaml:"user" envconfig:"POSTGRES_USER"`
	Password       string `yaml:"password" envconfig:"POSTGRES_PASSWORD"`
	Name           string `yaml:"name" envconfig:"POSTGRES_DB"`
	SSLMode        string `yaml:"sslmode" envconfig:"POSTGRES_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"POSTGRES_MAX_CONNECTIONS"`
}
