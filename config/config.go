// Package config resolves benchmark settings from flags, environment
// variables, .env files and config files.
//
// Precedence is flag > environment > config file > default. Environment
// variables use the COLBENCH_ prefix and the upper-cased key, for example
// COLBENCH_NUM_QUERIES or COLBENCH_DATASET_URI=/a,/b.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables.
const EnvPrefix = "COLBENCH"

// New creates a viper instance wired to COLBENCH_* variables. dotenv files
// are loaded into the process environment first; missing files are ignored
// and variables already set win. A non-empty configFile must exist.
func New(configFile string, dotenv ...string) (*viper.Viper, error) {
	if err := LoadDotEnv(dotenv...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, &Error{Key: "config", Err: err}
		}
	}
	return v, nil
}

// LoadDotEnv loads the given .env files, defaulting to ".env".
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return &Error{Key: "dotenv", Err: err}
		}
		if err := godotenv.Load(f); err != nil {
			return &Error{Key: "dotenv", Err: fmt.Errorf("%s: %w", f, err)}
		}
	}
	return nil
}

// BindFlags binds every flag in fs to the key of the same name with dashes
// replaced by underscores.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Error reports an invalid setting.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(key, format string, args ...any) error {
	return &Error{Key: key, Err: fmt.Errorf(format, args...)}
}

func unmarshal(v *viper.Viper, target any) error {
	if err := v.Unmarshal(target); err != nil {
		return &Error{Key: "unmarshal", Err: err}
	}
	return nil
}
