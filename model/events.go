package model

// Chaincode event names. Fabric keeps a single event per transaction, so each
// transaction emits exactly one of these.
const (
	EventOperatingStatusChanged = "OperatingStatusChanged"
	EventAirlineRegistered      = "AirlineRegistered"
	EventAirlineVoted           = "AirlineVoted"
	EventAirlineFunded          = "AirlineFunded"
	EventFlightRegistered       = "FlightRegistered"
	EventInsurancePurchased     = "InsurancePurchased"
	EventOracleRegistered       = "OracleRegistered"
	EventOracleRequest          = "OracleRequest"
	EventOracleReport           = "OracleReport"
	EventFlightStatusInfo       = "FlightStatusInfo"
	EventCreditWithdrawn        = "CreditWithdrawn"
	EventDeposit                = "Deposit"
)

// OracleRequestEvent asks oracles holding Index to report the status of a flight.
type OracleRequestEvent struct {
	RequestID string `json:"requestId"`
	Index     int    `json:"index"`
	Airline   string `json:"airline"`
	Flight    string `json:"flight"`
	Timestamp uint64 `json:"timestamp"`
}

// OracleReportEvent records an accepted response that did not reach quorum.
type OracleReportEvent struct {
	RequestID string     `json:"requestId"`
	Index     int        `json:"index"`
	Airline   string     `json:"airline"`
	Flight    string     `json:"flight"`
	Timestamp uint64     `json:"timestamp"`
	Oracle    string     `json:"oracle"`
	Status    StatusCode `json:"status"`
	Responses int        `json:"responses"`
}

// FlightStatusInfoEvent announces a finalized flight status.
type FlightStatusInfoEvent struct {
	RequestID        string     `json:"requestId"`
	Airline          string     `json:"airline"`
	Flight           string     `json:"flight"`
	Timestamp        uint64     `json:"timestamp"`
	Status           StatusCode `json:"status"`
	CreditedPolicies int        `json:"creditedPolicies"`
}

// InsurancePurchasedEvent is the purchase record consumed for display.
type InsurancePurchasedEvent struct {
	Passenger string `json:"passenger"`
	Airline   string `json:"airline"`
	Flight    string `json:"flight"`
	Timestamp uint64 `json:"timestamp"`
	Accepted  string `json:"accepted"`
	Refunded  string `json:"refunded"`
}

// AirlineEvent covers registration, voting and funding of an airline.
type AirlineEvent struct {
	Airline      string `json:"airline"`
	CompanyName  string `json:"companyName"`
	Actor        string `json:"actor"`
	IsRegistered bool   `json:"isRegistered"`
	IsFunded     bool   `json:"isFunded"`
	Votes        int    `json:"votes"`
	Amount       string `json:"amount,omitempty"`
}

// FlightRegisteredEvent announces a newly scheduled flight.
type FlightRegisteredEvent struct {
	Airline   string `json:"airline"`
	Flight    string `json:"flight"`
	Timestamp uint64 `json:"timestamp"`
}

// OracleRegisteredEvent announces an oracle and its assigned indexes.
type OracleRegisteredEvent struct {
	Oracle  string `json:"oracle"`
	Indexes []int  `json:"indexes"`
	Fee     string `json:"fee"`
}

// TransferEvent covers withdrawals and deposits.
type TransferEvent struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// OperatingStatusEvent announces a change of the halt flag.
type OperatingStatusEvent struct {
	IsOperational bool   `json:"isOperational"`
	ChangedBy     string `json:"changedBy"`
}
