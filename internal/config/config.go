package config

import "github.com/ilyakaznacheev/cleanenv"

// Config holds the server settings, read from the environment. The driver
// selects the storage backend: "sqlite" keeps a local file, "postgres"
// connects to a shared server.
type Config struct {
	Addr      string `env:"ABCTRACK_ADDR" env-default:":8080"`
	RPCSocket string `env:"ABCTRACK_RPC_SOCKET" env-default:"/tmp/abctrack.sock"`
	Driver    string `env:"ABCTRACK_DB_DRIVER" env-default:"sqlite"`
	DBPath    string `env:"ABCTRACK_DB_PATH" env-default:"abctrack.db"`
	DSN       string `env:"ABCTRACK_DB_DSN"`
}

func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
