package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/vkuznetsov-dev/cipherchat/internal/flagx"
	"github.com/vkuznetsov-dev/cipherchat/internal/timex"
)

// JsonConfig is the DTO for reading JSON configuration files. After
// unmarshalling, its fields are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	StorageRoot      string         `json:"storage_root"`
	BlobBackend      string         `json:"blob_backend"`
	StrictChunkReads bool           `json:"strict_chunk_reads"`
	ShutdownTimeout  timex.Duration `json:"shutdown_timeout"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by the
// -c or -config flags into the provided Config. Without the flag no
// file is loaded; an unreadable or invalid file panics, startup cannot
// proceed on half-read configuration.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.StorageRoot = c.StorageRoot
	config.BlobBackend = c.BlobBackend
	config.StrictChunkReads = c.StrictChunkReads
	config.ShutdownTimeout = time.Duration(c.ShutdownTimeout.Duration)
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
}
