package main

import (
	"fmt"
	"os"

	"flightsurety/config"
	"flightsurety/contract"

	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/hyperledger/fabric/common/flogging"
)

var logger = flogging.MustGetLogger("flightsurety.main")

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Error loading configuration: " + err.Error())
	}
	if err := flogging.Global.ActivateSpec(cfg.Log.Spec); err != nil {
		panic("Error activating log spec: " + err.Error())
	}

	cc, err := contractapi.NewChaincode(contract.NewFlightSuretyContract())
	if err != nil {
		panic("Error creating FlightSuretyContract: " + err.Error())
	}
	cc.Info.Title = "flightsurety"
	cc.Info.Version = "1.0.0"

	if !cfg.Server.AsService() {
		if err := cc.Start(); err != nil {
			panic("Error starting chaincode: " + err.Error())
		}
		return
	}

	server, err := newChaincodeServer(cfg.Server, cc)
	if err != nil {
		panic("Error configuring chaincode server: " + err.Error())
	}
	logger.Infof("Starting chaincode server %s on %s (tls=%t)", cfg.Server.ChaincodeID, cfg.Server.Address, cfg.Server.TLS.Enabled)
	if err := server.Start(); err != nil {
		panic("Error starting chaincode server: " + err.Error())
	}
}

// newChaincodeServer builds the chaincode-as-a-service endpoint, loading TLS material
// from disk when enabled.
func newChaincodeServer(cfg config.ServerConfig, cc shim.Chaincode) (*shim.ChaincodeServer, error) {
	tlsProps := shim.TLSProperties{Disabled: !cfg.TLS.Enabled}
	if cfg.TLS.Enabled {
		key, err := os.ReadFile(cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading TLS key: %w", err)
		}
		cert, err := os.ReadFile(cfg.TLS.CertFile)
		if err != nil {
			return nil, fmt.Errorf("reading TLS certificate: %w", err)
		}
		tlsProps.Key = key
		tlsProps.Cert = cert
		if cfg.TLS.ClientCAFile != "" {
			ca, err := os.ReadFile(cfg.TLS.ClientCAFile)
			if err != nil {
				return nil, fmt.Errorf("reading client CA: %w", err)
			}
			tlsProps.ClientCACerts = ca
		}
	}
	return &shim.ChaincodeServer{
		CCID:     cfg.ChaincodeID,
		Address:  cfg.Address,
		CC:       cc,
		TLSProps: tlsProps,
	}, nil
}
