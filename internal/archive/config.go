package archive

import "codeberg.org/mutker/vamon/internal/errors"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/vamon/sessions.db"
)

type Config struct {
	DBPath string
}

func DefaultConfig() Config {
	return Config{
		DBPath: defaultDBPath,
	}
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New(ErrInvalidDBPath)
	}
	return nil
}
