package main

import (
	"context"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/relvacode/interrupt"
	"github.com/relvacode/s3c"
	"github.com/relvacode/s3c/creds"
	"go.uber.org/zap"
)

// credentialCacheLifetime is how long credentials loaded from the shared file
// are reused before the file is read again.
const credentialCacheLifetime = time.Minute

// app carries the global options and runtime state shared by every
// subcommand. Only the exported fields are visible to the flag parser.
type app struct {
	ctx context.Context
	log *zap.Logger

	Endpoint        string `long:"endpoint" env:"S3_ENDPOINT" required:"true" description:"Address of the S3 compatible service"`
	Region          string `long:"region" env:"AWS_REGION" description:"Region requests are signed for"`
	AccessKeyId     string `long:"access-key-id" env:"AWS_ACCESS_KEY_ID" description:"Sign requests with this access key id"`
	SecretAccessKey string `long:"secret-access-key" env:"AWS_SECRET_ACCESS_KEY" description:"Sign requests with this secret access key"`
	SessionToken    string `long:"session-token" env:"AWS_SESSION_TOKEN" description:"Session token for temporary credentials"`
	Profile         string `long:"profile" env:"AWS_PROFILE" description:"Profile of the shared credentials file"`
	PathStyle       bool   `long:"path-style" env:"S3_PATH_STYLE" description:"Address buckets in the request path instead of the hostname"`
	Debug           bool   `long:"debug" description:"Log every API call"`
}

// credentials builds the provider chain requests are signed with, in order of
// precedence: explicit flags, then the process environment, then the shared
// credentials file when one is readable.
func (a *app) credentials() creds.Provider {
	chain := creds.Chain{
		creds.NewStatic(a.AccessKeyId, a.SecretAccessKey, a.SessionToken),
		creds.Env{},
	}

	file, err := creds.NewFileProvider(a.log, "", a.Profile, credentialCacheLifetime)
	if err == nil {
		chain = append(chain, file)
	} else {
		a.log.Debug("Shared credentials file not available", zap.Error(err))
	}

	return chain
}

// client constructs the API client every subcommand runs against.
func (a *app) client() (*s3c.Client, error) {
	opts := []s3c.Option{
		s3c.WithCredentials(a.credentials()),
	}
	if a.Region != "" {
		opts = append(opts, s3c.WithRegion(a.Region))
	}
	if a.PathStyle {
		opts = append(opts, s3c.WithPathStyle())
	}
	if a.Debug {
		opts = append(opts, s3c.WithLogger(a.log))
	}

	return s3c.New(a.Endpoint, opts...)
}

func Main(log *zap.Logger) error {
	a := &app{
		ctx: interrupt.Context(context.Background()),
		log: log,
	}

	p := flags.NewParser(a, flags.HelpFlag)

	subcommands := []struct {
		name  string
		short string
		data  flags.Commander
	}{
		{"ls", "List buckets, or the contents of a bucket", &lsCommand{app: a}},
		{"mb", "Make a bucket", &mbCommand{app: a}},
		{"rb", "Remove an empty bucket", &rbCommand{app: a}},
		{"put", "Upload a file", &putCommand{app: a}},
		{"get", "Download an object", &getCommand{app: a}},
		{"rm", "Remove objects", &rmCommand{app: a}},
		{"stat", "Show bucket or object metadata", &statCommand{app: a}},
		{"presign", "Generate a presigned URL for an object", &presignCommand{app: a}},
	}

	for _, sub := range subcommands {
		if _, err := p.AddCommand(sub.name, sub.short, "", sub.data); err != nil {
			return err
		}
	}

	_, err := p.Parse()
	return err
}

func main() {
	cfg := zap.NewDevelopmentConfig()
	log, _ := cfg.Build()

	err := Main(log)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
