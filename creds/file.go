package creds

import (
	"fmt"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SharedCredentialsPath locates the AWS shared credentials file, honouring
// AWS_SHARED_CREDENTIALS_FILE when set.
func SharedCredentialsPath() (string, error) {
	if path := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); path != "" {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate credentials file: %w", err)
	}

	return filepath.Join(home, ".aws", "credentials"), nil
}

func NewFileProvider(log *zap.Logger, path, profile string, cache time.Duration) (*FileProvider, error) {
	if path == "" {
		var err error
		path, err = SharedCredentialsPath()
		if err != nil {
			return nil, err
		}
	}
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile == "" {
		profile = "default"
	}

	fp := &FileProvider{
		log:     log,
		path:    path,
		profile: profile,
		cache:   cache,
	}

	value, err := fp.load()
	if err != nil {
		return nil, err
	}

	fp.value = value
	fp.expires = time.Now().Add(cache)

	return fp, nil
}

// FileProvider implements Provider by reading a profile from the AWS shared
// credentials file. The parsed value is cached for up to the configured
// amount of time.
type FileProvider struct {
	log     *zap.Logger
	path    string
	profile string
	cache   time.Duration

	mx      sync.RWMutex
	expires time.Time
	value   Value
}

// load the selected profile from the file.
// It does not lock the provider.
func (fp *FileProvider) load() (Value, error) {
	v := viper.New()
	v.SetConfigFile(fp.path)
	v.SetConfigType("ini")

	if err := v.ReadInConfig(); err != nil {
		return Value{}, fmt.Errorf("read credentials file %s: %w", fp.path, err)
	}

	value := Value{
		AccessKeyID:     v.GetString(fp.profile + ".aws_access_key_id"),
		SecretAccessKey: v.GetString(fp.profile + ".aws_secret_access_key"),
		SessionToken:    v.GetString(fp.profile + ".aws_session_token"),
	}
	if !value.Valid() {
		return Value{}, fmt.Errorf("profile %q in %s: %w", fp.profile, fp.path, ErrNoCredentials)
	}

	return value, nil
}

func (fp *FileProvider) Retrieve() (Value, error) {
	fp.mx.RLock()
	if time.Now().Before(fp.expires) {
		defer fp.mx.RUnlock()
		return fp.value, nil
	}

	fp.mx.RUnlock()

	fp.mx.Lock()
	defer fp.mx.Unlock()

	if time.Now().Before(fp.expires) {
		return fp.value, nil
	}

	value, err := fp.load()
	if err != nil {
		fp.log.Error("failed to reload credentials file", zap.Error(err))
		return Value{}, err
	}

	fp.value = value
	fp.expires = time.Now().Add(fp.cache)

	return fp.value, nil
}
