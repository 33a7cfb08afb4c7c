package main

import (
	"os"
	"path/filepath"
	"testing"

	"flightsurety/config"
	"flightsurety/contract"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractBuildsChaincode(t *testing.T) {
	_, err := contractapi.NewChaincode(contract.NewFlightSuretyContract())
	require.NoError(t, err)
}

func TestNewChaincodeServerWithoutTLS(t *testing.T) {
	cc, err := contractapi.NewChaincode(contract.NewFlightSuretyContract())
	require.NoError(t, err)

	server, err := newChaincodeServer(config.ServerConfig{Address: ":9999", ChaincodeID: "flightsurety:1"}, cc)
	require.NoError(t, err)
	assert.True(t, server.TLSProps.Disabled)
	assert.Equal(t, "flightsurety:1", server.CCID)
	assert.Equal(t, ":9999", server.Address)
}

func TestNewChaincodeServerLoadsTLSFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		return path
	}
	cfg := config.ServerConfig{
		Address:     ":9999",
		ChaincodeID: "flightsurety:1",
		TLS: config.TLSConfig{
			Enabled:      true,
			KeyFile:      write("key.pem", "key"),
			CertFile:     write("cert.pem", "cert"),
			ClientCAFile: write("ca.pem", "ca"),
		},
	}

	server, err := newChaincodeServer(cfg, nil)
	require.NoError(t, err)
	assert.False(t, server.TLSProps.Disabled)
	assert.Equal(t, []byte("key"), server.TLSProps.Key)
	assert.Equal(t, []byte("cert"), server.TLSProps.Cert)
	assert.Equal(t, []byte("ca"), server.TLSProps.ClientCACerts)

	cfg.TLS.KeyFile = filepath.Join(dir, "missing.pem")
	_, err = newChaincodeServer(cfg, nil)
	assert.Error(t, err)
}
