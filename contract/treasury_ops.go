package contract

import (
	"fmt"
	"time"

	"flightsurety/model"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
	"github.com/shopspring/decimal"
)

// treasuryParty names the treasury in transfer events.
const treasuryParty = "treasury"

// Disburser moves a withdrawal out of the treasury to its recipient. Pay has already
// zeroed the recipient's credit when Disburse runs.
type Disburser interface {
	Disburse(ctx contractapi.TransactionContextInterface, to string, amount decimal.Decimal) error
}

// ledgerDisburser settles withdrawals on the ledger's own accounts.
type ledgerDisburser struct{}

func (ledgerDisburser) Disburse(ctx contractapi.TransactionContextInterface, to string, amount decimal.Decimal) error {
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return err
	}
	treasury, err := getTreasury(ctx)
	if err != nil {
		return err
	}
	if treasury.Balance.LessThan(amount) {
		return reject(ErrInsufficientTreasury, "treasury holds %s, cannot disburse %s", treasury.Balance.String(), amount.String())
	}
	account, err := getAccount(ctx, to)
	if err != nil {
		return err
	}
	treasury.Balance = treasury.Balance.Sub(amount)
	treasury.UpdatedAt = now
	account.Balance = account.Balance.Add(amount)
	account.UpdatedAt = now
	if err := putTreasury(ctx, treasury); err != nil {
		return err
	}
	return putAccount(ctx, account)
}

// --- Account, treasury and credit accessors ---

// getAccount returns a zero balance account for identities that never held funds.
func getAccount(ctx contractapi.TransactionContextInterface, owner string) (*model.Account, error) {
	key, err := accountKey(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create account key for '%s': %w", owner, err)
	}
	account := model.Account{ObjectType: accountObjectType, Owner: owner, Balance: decimal.Zero}
	if _, err := getJSON(ctx, key, &account); err != nil {
		return nil, fmt.Errorf("account '%s': %w", owner, err)
	}
	return &account, nil
}

func putAccount(ctx contractapi.TransactionContextInterface, account *model.Account) error {
	key, err := accountKey(ctx, account.Owner)
	if err != nil {
		return fmt.Errorf("failed to create account key for '%s': %w", account.Owner, err)
	}
	return putJSON(ctx, key, account)
}

func getTreasury(ctx contractapi.TransactionContextInterface) (*model.Treasury, error) {
	key, err := treasuryKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create treasury key: %w", err)
	}
	treasury := model.Treasury{ObjectType: treasuryObjectType, Balance: decimal.Zero}
	if _, err := getJSON(ctx, key, &treasury); err != nil {
		return nil, fmt.Errorf("treasury: %w", err)
	}
	return &treasury, nil
}

func putTreasury(ctx contractapi.TransactionContextInterface, treasury *model.Treasury) error {
	key, err := treasuryKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to create treasury key: %w", err)
	}
	return putJSON(ctx, key, treasury)
}

func getCredit(ctx contractapi.TransactionContextInterface, passenger string) (*model.Credit, error) {
	key, err := creditKey(ctx, passenger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credit key for '%s': %w", passenger, err)
	}
	credit := model.Credit{ObjectType: creditObjectType, Passenger: passenger, Balance: decimal.Zero}
	if _, err := getJSON(ctx, key, &credit); err != nil {
		return nil, fmt.Errorf("credit '%s': %w", passenger, err)
	}
	return &credit, nil
}

func putCredit(ctx contractapi.TransactionContextInterface, credit *model.Credit) error {
	key, err := creditKey(ctx, credit.Passenger)
	if err != nil {
		return fmt.Errorf("failed to create credit key for '%s': %w", credit.Passenger, err)
	}
	return putJSON(ctx, key, credit)
}

// escrow is a validated debit of payer's account into the treasury. Build it with
// prepareEscrow after every other guard has passed, then commit it.
type escrow struct {
	account  *model.Account
	treasury *model.Treasury
	amount   decimal.Decimal
}

func prepareEscrow(ctx contractapi.TransactionContextInterface, payer string, amount decimal.Decimal) (*escrow, error) {
	account, err := getAccount(ctx, payer)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(amount) {
		return nil, reject(ErrInsufficientBalance, "account '%s' holds %s, needs %s", payer, account.Balance.String(), amount.String())
	}
	treasury, err := getTreasury(ctx)
	if err != nil {
		return nil, err
	}
	return &escrow{account: account, treasury: treasury, amount: amount}, nil
}

func (e *escrow) commit(ctx contractapi.TransactionContextInterface, now time.Time) error {
	e.account.Balance = e.account.Balance.Sub(e.amount)
	e.account.UpdatedAt = now
	e.treasury.Balance = e.treasury.Balance.Add(e.amount)
	e.treasury.UpdatedAt = now
	if err := putAccount(ctx, e.account); err != nil {
		return err
	}
	return putTreasury(ctx, e.treasury)
}

// creditPassenger adds the payout of policy to its passenger's credit and marks the
// policy credited. Already credited policies are left alone. The returned bool reports
// whether a credit was written.
func creditPassenger(ctx contractapi.TransactionContextInterface, policy *model.Policy, now time.Time) (bool, error) {
	if policy.IsCredited {
		return false, nil
	}
	credit, err := getCredit(ctx, policy.Passenger)
	if err != nil {
		return false, err
	}
	payout := policy.AmountPaid.Mul(PayoutMultiplier)
	credit.Balance = credit.Balance.Add(payout)
	credit.UpdatedAt = now
	policy.IsCredited = true
	policy.CreditedAt = now
	if err := putCredit(ctx, credit); err != nil {
		return false, err
	}
	if err := putPolicy(ctx, policy); err != nil {
		return false, err
	}
	logger.Debugf("creditPassenger: credited %s to '%s' for flight '%s'", payout.String(), policy.Passenger, policy.CallSign)
	return true, nil
}

// --- Transactions ---

// Pay withdraws the caller's whole credit to their account.
func (s *FlightSuretyContract) Pay(ctx contractapi.TransactionContextInterface) error {
	logger.Infof("Chaincode Call: Pay by %s", MustGetCallerFullID(ctx))

	if err := requireOperational(ctx); err != nil {
		return err
	}
	passenger, err := callerID(ctx)
	if err != nil {
		return fmt.Errorf("Pay: %w", err)
	}
	credit, err := getCredit(ctx, passenger)
	if err != nil {
		return fmt.Errorf("Pay: %w", err)
	}
	if !credit.Balance.IsPositive() {
		return reject(ErrNoCredit, "no credit to withdraw for '%s'", passenger)
	}
	treasury, err := getTreasury(ctx)
	if err != nil {
		return fmt.Errorf("Pay: %w", err)
	}
	if treasury.Balance.LessThan(credit.Balance) {
		return reject(ErrInsufficientTreasury, "treasury holds %s, credit is %s", treasury.Balance.String(), credit.Balance.String())
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Pay: %w", err)
	}

	amount := credit.Balance
	credit.Balance = decimal.Zero
	credit.UpdatedAt = now
	if err := putCredit(ctx, credit); err != nil {
		return fmt.Errorf("Pay: %w", err)
	}
	if err := s.getDisburser().Disburse(ctx, passenger, amount); err != nil {
		return fmt.Errorf("Pay: disbursing %s to '%s': %w", amount.String(), passenger, err)
	}

	emitEvent(ctx, model.EventCreditWithdrawn, &model.TransferEvent{From: treasuryParty, To: passenger, Amount: amount.String()})
	logger.Infof("Pay: withdrew %s to '%s'", amount.String(), passenger)
	return nil
}

// Deposit issues spendable balance to recipient. Owner only.
func (s *FlightSuretyContract) Deposit(ctx contractapi.TransactionContextInterface, recipient string, amountStr string) error {
	logger.Infof("Chaincode Call: Deposit of %s to '%s'", amountStr, recipient)

	if err := requireOperational(ctx); err != nil {
		return err
	}
	owner, _, err := NewIdentityManager(ctx).RequireOwner()
	if err != nil {
		return err
	}
	if err := validateRequiredString(recipient, "recipient", maxStringInputLength); err != nil {
		return err
	}
	amount, err := parseAmount(amountStr, "amount")
	if err != nil {
		return err
	}
	now, err := getCurrentTxTimestamp(ctx)
	if err != nil {
		return fmt.Errorf("Deposit: %w", err)
	}
	account, err := getAccount(ctx, recipient)
	if err != nil {
		return fmt.Errorf("Deposit: %w", err)
	}
	account.Balance = account.Balance.Add(amount)
	account.UpdatedAt = now
	if err := putAccount(ctx, account); err != nil {
		return fmt.Errorf("Deposit: %w", err)
	}

	emitEvent(ctx, model.EventDeposit, &model.TransferEvent{From: owner, To: recipient, Amount: amount.String()})
	return nil
}

// --- Queries ---

// GetCredit returns the claimable credit of address as a decimal string.
func (s *FlightSuretyContract) GetCredit(ctx contractapi.TransactionContextInterface, address string) (string, error) {
	logger.Debugf("Chaincode Call: GetCredit for '%s'", address)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return "", err
	}
	credit, err := getCredit(ctx, address)
	if err != nil {
		return "", fmt.Errorf("GetCredit: %w", err)
	}
	return credit.Balance.String(), nil
}

// GetBalance returns the spendable balance of address as a decimal string.
func (s *FlightSuretyContract) GetBalance(ctx contractapi.TransactionContextInterface, address string) (string, error) {
	logger.Debugf("Chaincode Call: GetBalance for '%s'", address)
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return "", err
	}
	account, err := getAccount(ctx, address)
	if err != nil {
		return "", fmt.Errorf("GetBalance: %w", err)
	}
	return account.Balance.String(), nil
}

func (s *FlightSuretyContract) GetTreasuryBalance(ctx contractapi.TransactionContextInterface) (string, error) {
	if _, err := NewIdentityManager(ctx).RequireInitialized(); err != nil {
		return "", err
	}
	treasury, err := getTreasury(ctx)
	if err != nil {
		return "", fmt.Errorf("GetTreasuryBalance: %w", err)
	}
	return treasury.Balance.String(), nil
}
