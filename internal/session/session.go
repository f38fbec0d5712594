package session

import (
	"bytes"
	"fmt"
	"net"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const imsiPrefix = "IMSI"

var validate = validator.New()

// namespace for deterministic session id derivation
var sessionIDNamespace = uuid.MustParse("7b0aa6b7-55aa-4c43-9e1f-6a0f1e304b2c")

// QoSInfo describes the QoS profile requested for a session's default bearer.
type QoSInfo struct {
	Enabled bool
	ClassID int32
}

// Config is the immutable per-session configuration supplied at creation
// time. All fields participate in duplicate-session comparison.
type Config struct {
	UEIPv4          string `validate:"omitempty,ipv4"`
	SPGWIPv4        string `validate:"omitempty,ipv4"`
	MSISDN          string
	APN             string
	IMEI            string
	PLMNID          string
	IMSIPlmnID      string
	UserLocation    string
	RATType         RATType
	HardwareAddr    net.HardwareAddr `validate:"omitempty,max=20"`
	RadiusSessionID string
	BearerID        uint32
	QoS             QoSInfo
}

// RATType identifies the radio access technology a session was created over.
type RATType int32

const (
	RATTypeUnspecified RATType = 0
	RATTypeLTE         RATType = 1
	RATTypeWLAN        RATType = 2
)

// Validate rejects malformed configuration before any side effects are
// performed on its behalf.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	return nil
}

// MACString renders the hardware address as colon separated lower case hex,
// the form the billing systems expect. Empty when no address was supplied.
func (c Config) MACString() string {
	if len(c.HardwareAddr) == 0 {
		return ""
	}
	return c.HardwareAddr.String()
}

// Equal reports whether two configs are identical. Used for the
// duplicate-session check, where every field is significant.
func (c Config) Equal(other Config) bool {
	return c.UEIPv4 == other.UEIPv4 &&
		c.SPGWIPv4 == other.SPGWIPv4 &&
		c.MSISDN == other.MSISDN &&
		c.APN == other.APN &&
		c.IMEI == other.IMEI &&
		c.PLMNID == other.PLMNID &&
		c.IMSIPlmnID == other.IMSIPlmnID &&
		c.UserLocation == other.UserLocation &&
		c.RATType == other.RATType &&
		bytes.Equal(c.HardwareAddr, other.HardwareAddr) &&
		c.RadiusSessionID == other.RadiusSessionID &&
		c.BearerID == other.BearerID &&
		c.QoS == other.QoS
}

// Session is one subscriber's active data context. Identity and Config are
// fixed at creation; only the termination flag mutates, and only on the
// orchestrator's worker context.
type Session struct {
	ID     string
	IMSI   string
	Config Config

	// Terminating is set once the termination protocol has been initiated.
	// A terminating session no longer counts as live for duplicate checks.
	Terminating bool
}

// NormalizeIMSI ensures the subscriber id carries the standard IMSI prefix.
func NormalizeIMSI(imsi string) string {
	if !strings.HasPrefix(imsi, imsiPrefix) {
		return imsiPrefix + imsi
	}
	return imsi
}

// GenerateID derives a session id from the subscriber id and a per-subscriber
// generation counter. The id is deterministic for a given (imsi, generation)
// pair so repeated creation attempts are idempotently identifiable, while
// successive sessions for the same subscriber remain distinct.
func GenerateID(imsi string, generation uint64) string {
	seed := fmt.Sprintf("%s/%d", imsi, generation)
	return fmt.Sprintf("%s-%s", imsi, uuid.NewSHA1(sessionIDNamespace, []byte(seed)))
}

// RuleRecord is one measurement of traffic matched by an installed flow rule,
// reported periodically by the dataplane agent.
type RuleRecord struct {
	IMSI    string
	RuleID  string
	BytesTx uint64
	BytesRx uint64
}
