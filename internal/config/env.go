package config

import (
	"os"
	"strconv"
)

// ApplyEnv fills credentials and connection settings that are still empty
// from environment variables:
//
//	GITHUB_TOKEN, GITHUB_REPOSITORY, DATABASE_URL, WEBHOOK_SECRET,
//	MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, MINIO_BUCKET, MINIO_USE_SSL
//
// getenv defaults to os.Getenv when nil.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	setIfEmpty := func(dst *string, key string) {
		if *dst == "" {
			*dst = getenv(key)
		}
	}

	setIfEmpty(&c.Publisher.GitHub.Token, "GITHUB_TOKEN")
	setIfEmpty(&c.Publisher.GitHub.Repository, "GITHUB_REPOSITORY")
	setIfEmpty(&c.DatabaseURL, "DATABASE_URL")
	setIfEmpty(&c.Server.WebhookSecret, "WEBHOOK_SECRET")

	setIfEmpty(&c.Store.Minio.Endpoint, "MINIO_ENDPOINT")
	setIfEmpty(&c.Store.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setIfEmpty(&c.Store.Minio.SecretKey, "MINIO_SECRET_KEY")
	setIfEmpty(&c.Store.Minio.Bucket, "MINIO_BUCKET")
	if !c.Store.Minio.UseSSL {
		if v, err := strconv.ParseBool(getenv("MINIO_USE_SSL")); err == nil {
			c.Store.Minio.UseSSL = v
		}
	}
}
