// Package billing defines the interface to the remote charging systems
// (OCS/PCRF equivalents) that are authoritative for credit approval and
// final usage settlement. The wire transport behind it is out of scope here;
// implementations deliver results through completion callbacks, which the
// orchestrator marshals back onto its worker context.
package billing

import (
	"github.com/wolfeidau/sessiond/internal/session"
)

// CreateSessionRequest asks the billing systems to approve a new session.
type CreateSessionRequest struct {
	SessionID       string
	IMSI            string
	UEIPv4          string
	SPGWIPv4        string
	APN             string
	MSISDN          string
	IMEI            string
	PLMNID          string
	IMSIPlmnID      string
	UserLocation    string
	HardwareAddr    string
	RadiusSessionID string
	RATType         session.RATType
	QoS             session.QoSInfo
}

// NewCreateSessionRequest builds the create request from a session's config.
func NewCreateSessionRequest(sessionID, imsi string, cfg session.Config) *CreateSessionRequest {
	return &CreateSessionRequest{
		SessionID:       sessionID,
		IMSI:            imsi,
		UEIPv4:          cfg.UEIPv4,
		SPGWIPv4:        cfg.SPGWIPv4,
		APN:             cfg.APN,
		MSISDN:          cfg.MSISDN,
		IMEI:            cfg.IMEI,
		PLMNID:          cfg.PLMNID,
		IMSIPlmnID:      cfg.IMSIPlmnID,
		UserLocation:    cfg.UserLocation,
		HardwareAddr:    cfg.MACString(),
		RadiusSessionID: cfg.RadiusSessionID,
		RATType:         cfg.RATType,
		QoS:             cfg.QoS,
	}
}

// CreditGrant is an allowance returned by the charging system for one
// charging key.
type CreditGrant struct {
	ChargingKey  uint32
	GrantedBytes uint64
}

// MonitorGrant is a usage-monitoring allowance keyed by monitoring key.
type MonitorGrant struct {
	MonitoringKey string
	GrantedBytes  uint64
}

// CreateSessionResponse carries the initial grants for a newly approved
// session.
type CreateSessionResponse struct {
	SessionID string
	Credits   []CreditGrant
	Monitors  []MonitorGrant
}

// ChargingUpdate reports usage consumed against one charging key.
type ChargingUpdate struct {
	SessionID   string
	IMSI        string
	RuleID      string
	BytesTx     uint64
	BytesRx     uint64
	ChargingKey uint32
}

// MonitorUpdate reports usage against one monitoring key.
type MonitorUpdate struct {
	SessionID     string
	IMSI          string
	MonitoringKey string
	BytesTx       uint64
	BytesRx       uint64
}

// UsageReportRequest is one aggregated report round: every pending charging
// and monitor update collected from the credit engine. It is acknowledged or
// rolled back as a whole, never partially.
type UsageReportRequest struct {
	ChargingUpdates []ChargingUpdate
	MonitorUpdates  []MonitorUpdate
}

// Empty reports whether there is nothing to send.
func (r *UsageReportRequest) Empty() bool {
	return len(r.ChargingUpdates) == 0 && len(r.MonitorUpdates) == 0
}

// UsageReportResponse carries refreshed grants in acknowledgement of a
// usage report.
type UsageReportResponse struct {
	Credits  []CreditGrant
	Monitors []MonitorGrant
}

// TerminationRequest carries the final usage for a session being torn down.
type TerminationRequest struct {
	SessionID  string
	IMSI       string
	FinalUsage []ChargingUpdate
}

// Reporter is the asynchronous client for the billing systems. Callbacks may
// fire on any goroutine; callers are responsible for marshaling back onto
// their own execution context.
type Reporter interface {
	CreateSession(req *CreateSessionRequest, done func(*CreateSessionResponse, error))
	ReportUsage(req *UsageReportRequest, done func(*UsageReportResponse, error))
	ReportTermination(req *TerminationRequest, done func(error))
}
