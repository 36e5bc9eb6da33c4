package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host       string
		Port       int64
		JwtSecret  string `mapstructure:"jwt_secret"`
		StatsdHost string `mapstructure:"statsd_host"`
		StatsdPort string `mapstructure:"statsd_port"`
	}

	Redis struct {
		Host     string
		Port     string
		User     string
		Password string
		DB       int
	}

	Database struct {
		DSN string
	}

	BlockStorage struct {
		Host      string
		Region    string
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string
	}

	Chain struct {
		// DomainID is mixed into every withdrawal message hash so a
		// signature never replays across deployments or forks.
		DomainID int64 `mapstructure:"domain_id"`
		// VerifierVariant selects the threshold verification convention,
		// "classic" or "tagged". A deployment binds exactly one.
		VerifierVariant string `mapstructure:"verifier_variant"`
		// PublicKey is the 33-byte compressed threshold public key, hex
		// encoded.
		PublicKey string `mapstructure:"public_key"`

		VaultAddress   string `mapstructure:"vault_address"`
		FactoryAddress string `mapstructure:"factory_address"`
		Admin          string `mapstructure:"admin"`
		Operator       string `mapstructure:"operator"`
		ShieldSigner   string `mapstructure:"shield_signer"`
	}
}

// ReadConfig reads the named config file from the working directory.
// Environment variables take precedence over file values.
func ReadConfig(name string) (Config, error) {
	var cfg Config
	viper.SetConfigName(name)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("fail to read config file, err: %w", err)
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("fail to unmarshal config, err: %w", err)
	}
	return cfg, nil
}
