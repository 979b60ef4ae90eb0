package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.validate())

	cfg = testConfig()
	cfg.port = 0
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.port = 65536
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.tlsCert = "cert.pem"
	assert.Error(t, cfg.validate(), "certificate without key must fail")

	cfg = testConfig()
	cfg.oracleURL = "not a url"
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.verifyRetries = -1
	assert.Error(t, cfg.validate())

	cfg = testConfig()
	cfg.minGroupSize = 0
	assert.Error(t, cfg.validate())
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}
