package billing

import (
	"github.com/rs/zerolog/log"
)

// Loopback is a billing reporter that approves everything locally. It exists
// for local development and testing only - no remote charging system is
// contacted and grants are a fixed allowance.
type Loopback struct {
	// GrantBytes is the allowance handed out per charging key. Defaults to
	// 1 GiB when zero.
	GrantBytes uint64
}

func (l *Loopback) grant() uint64 {
	if l.GrantBytes == 0 {
		return 1 << 30
	}
	return l.GrantBytes
}

func (l *Loopback) CreateSession(req *CreateSessionRequest, done func(*CreateSessionResponse, error)) {
	log.Debug().Str("session_id", req.SessionID).Str("imsi", req.IMSI).Msg("loopback billing: approving session")
	done(&CreateSessionResponse{
		SessionID: req.SessionID,
		Credits:   []CreditGrant{{ChargingKey: 1, GrantedBytes: l.grant()}},
	}, nil)
}

func (l *Loopback) ReportUsage(req *UsageReportRequest, done func(*UsageReportResponse, error)) {
	resp := &UsageReportResponse{}
	seen := make(map[uint32]struct{})
	for _, update := range req.ChargingUpdates {
		if _, ok := seen[update.ChargingKey]; ok {
			continue
		}
		seen[update.ChargingKey] = struct{}{}
		resp.Credits = append(resp.Credits, CreditGrant{ChargingKey: update.ChargingKey, GrantedBytes: l.grant()})
	}
	done(resp, nil)
}

func (l *Loopback) ReportTermination(req *TerminationRequest, done func(error)) {
	log.Debug().Str("session_id", req.SessionID).Int("final_usage", len(req.FinalUsage)).
		Msg("loopback billing: session terminated")
	done(nil)
}
