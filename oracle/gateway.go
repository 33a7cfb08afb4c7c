package oracle

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"flightsurety/config"
	"flightsurety/model"

	"github.com/hyperledger/fabric-gateway/pkg/client"
	"github.com/hyperledger/fabric-gateway/pkg/identity"
	"github.com/hyperledger/fabric-protos-go-apiv2/gateway"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// DialGateway opens the gRPC connection shared by every oracle identity. TLS is used
// when a peer TLS certificate is configured.
func DialGateway(cfg config.GatewayConfig) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials = insecure.NewCredentials()
	if cfg.TLSCertFile != "" {
		certPEM, err := os.ReadFile(cfg.TLSCertFile)
		if err != nil {
			return nil, fmt.Errorf("reading peer TLS certificate: %w", err)
		}
		cert, err := identity.CertificateFromPEM(certPEM)
		if err != nil {
			return nil, fmt.Errorf("parsing peer TLS certificate: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AddCert(cert)
		creds = credentials.NewClientTLSFromCert(pool, cfg.ServerNameOverride)
	}
	conn, err := grpc.Dial(cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("dialing gateway %s: %w", cfg.Endpoint, err)
	}
	return conn, nil
}

// GatewayLedger submits each oracle's transactions through a Fabric Gateway, signing
// with that oracle's own enrolled identity.
type GatewayLedger struct {
	conn grpc.ClientConnInterface
	cfg  config.GatewayConfig

	mu       sync.Mutex
	gateways map[string]*client.Gateway
}

// NewGatewayLedger returns a Ledger over conn. Identities are loaded from
// cfg.IdentityDir the first time an oracle transacts.
func NewGatewayLedger(conn grpc.ClientConnInterface, cfg config.GatewayConfig) *GatewayLedger {
	return &GatewayLedger{
		conn:     conn,
		cfg:      cfg,
		gateways: map[string]*client.Gateway{},
	}
}

func (g *GatewayLedger) gateway(oracle string) (*client.Gateway, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gw, ok := g.gateways[oracle]; ok {
		return gw, nil
	}
	id, sign, err := loadIdentity(g.cfg.IdentityDir, g.cfg.MSPID, oracle)
	if err != nil {
		return nil, err
	}
	gw, err := client.Connect(
		id,
		client.WithSign(sign),
		client.WithClientConnection(g.conn),
		client.WithEvaluateTimeout(5*time.Second),
		client.WithEndorseTimeout(15*time.Second),
		client.WithSubmitTimeout(5*time.Second),
		client.WithCommitStatusTimeout(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting gateway for %s: %w", oracle, err)
	}
	g.gateways[oracle] = gw
	return gw, nil
}

func (g *GatewayLedger) contract(oracle string) (*client.Contract, error) {
	gw, err := g.gateway(oracle)
	if err != nil {
		return nil, err
	}
	return gw.GetNetwork(g.cfg.Channel).GetContract(g.cfg.Chaincode), nil
}

// loadIdentity reads the first certificate in signcerts and the first key in keystore
// of <dir>/<oracle>.
func loadIdentity(dir, mspID, oracle string) (*identity.X509Identity, identity.Sign, error) {
	base := filepath.Join(dir, oracle)
	certPEM, err := readFirstFile(filepath.Join(base, "signcerts"))
	if err != nil {
		return nil, nil, fmt.Errorf("identity of %s: %w", oracle, err)
	}
	cert, err := identity.CertificateFromPEM(certPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("identity of %s: %w", oracle, err)
	}
	id, err := identity.NewX509Identity(mspID, cert)
	if err != nil {
		return nil, nil, fmt.Errorf("identity of %s: %w", oracle, err)
	}
	keyPEM, err := readFirstFile(filepath.Join(base, "keystore"))
	if err != nil {
		return nil, nil, fmt.Errorf("signing key of %s: %w", oracle, err)
	}
	key, err := identity.PrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key of %s: %w", oracle, err)
	}
	sign, err := identity.NewPrivateKeySign(key)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key of %s: %w", oracle, err)
	}
	return id, sign, nil
}

func readFirstFile(dir string) ([]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return os.ReadFile(filepath.Join(dir, entry.Name()))
		}
	}
	return nil, fmt.Errorf("no file in %s", dir)
}

func (g *GatewayLedger) RegisterOracle(ctx context.Context, oracle string, fee string) ([]int, error) {
	result, err := g.submit(ctx, oracle, "RegisterOracle", fee)
	if err != nil {
		return nil, err
	}
	return decodeIndexes(result)
}

func (g *GatewayLedger) MyIndexes(ctx context.Context, oracle string) ([]int, error) {
	contract, err := g.contract(oracle)
	if err != nil {
		return nil, err
	}
	proposal, err := contract.NewProposal("GetMyIndexes")
	if err != nil {
		return nil, fmt.Errorf("GetMyIndexes: %w", err)
	}
	result, err := proposal.EvaluateWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetMyIndexes: %w", withDetails(err))
	}
	return decodeIndexes(result)
}

func (g *GatewayLedger) SubmitOracleResponse(ctx context.Context, oracle string, req model.OracleRequestEvent, reported model.StatusCode) error {
	_, err := g.submit(ctx, oracle, "SubmitOracleResponse",
		strconv.Itoa(req.Index),
		req.Airline,
		req.Flight,
		strconv.FormatUint(req.Timestamp, 10),
		strconv.Itoa(int(reported)),
	)
	return err
}

// submit endorses, orders and waits for the commit of one transaction.
func (g *GatewayLedger) submit(ctx context.Context, oracle, name string, args ...string) ([]byte, error) {
	contract, err := g.contract(oracle)
	if err != nil {
		return nil, err
	}
	proposal, err := contract.NewProposal(name, client.WithArguments(args...))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	tx, err := proposal.EndorseWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, withDetails(err))
	}
	commit, err := tx.SubmitWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, withDetails(err))
	}
	commitStatus, err := commit.StatusWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, withDetails(err))
	}
	if !commitStatus.Successful {
		// MVCC conflicts between oracles racing on one request land here and are retried.
		return nil, fmt.Errorf("%s: transaction %s failed to commit: %s", name, commitStatus.TransactionID, commitStatus.Code)
	}
	return tx.Result(), nil
}

// Events streams the chaincode's OracleRequest events, listening as oracle.
func (g *GatewayLedger) Events(ctx context.Context, oracle string) (<-chan model.OracleRequestEvent, error) {
	gw, err := g.gateway(oracle)
	if err != nil {
		return nil, err
	}
	events, err := gw.GetNetwork(g.cfg.Channel).ChaincodeEvents(ctx, g.cfg.Chaincode)
	if err != nil {
		return nil, fmt.Errorf("chaincode events: %w", withDetails(err))
	}
	return requestEvents(ctx, events), nil
}

// Close closes every gateway. The shared connection belongs to the caller.
func (g *GatewayLedger) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, gw := range g.gateways {
		if err := gw.Close(); err != nil {
			logger.Warningf("Close: gateway of %s: %v", name, err)
		}
	}
	g.gateways = map[string]*client.Gateway{}
}

func requestEvents(ctx context.Context, in <-chan *client.ChaincodeEvent) <-chan model.OracleRequestEvent {
	out := make(chan model.OracleRequestEvent)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.EventName != model.EventOracleRequest {
				continue
			}
			var req model.OracleRequestEvent
			if err := json.Unmarshal(ev.Payload, &req); err != nil {
				logger.Warningf("Events: skipping malformed request in tx %s: %v", ev.TransactionID, err)
				continue
			}
			select {
			case out <- req:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func decodeIndexes(result []byte) ([]int, error) {
	var indexes []int
	if err := json.Unmarshal(result, &indexes); err != nil {
		return nil, fmt.Errorf("decoding indexes: %w", err)
	}
	return indexes, nil
}

// withDetails appends the peers' error details, which carry the chaincode's
// "CODE: detail" message, to a gateway error.
func withDetails(err error) error {
	var messages []string
	for _, detail := range status.Convert(err).Details() {
		if d, ok := detail.(*gateway.ErrorDetail); ok {
			messages = append(messages, fmt.Sprintf("%s (%s): %s", d.GetAddress(), d.GetMspId(), d.GetMessage()))
		}
	}
	if len(messages) == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", err, strings.Join(messages, "; "))
}
