package dataplane

import (
	"github.com/rs/zerolog/log"
)

// Loopback is a dataplane agent that acknowledges every request. It exists
// for local development and testing only - no flows are installed anywhere.
type Loopback struct{}

func (Loopback) SetupFlows(epoch uint64, rules []SessionRules, done func(SetupResult, error)) {
	log.Debug().Uint64("epoch", epoch).Int("sessions", len(rules)).Msg("loopback dataplane: setup acknowledged")
	done(SetupSuccess, nil)
}

func (Loopback) DeactivateFlows(imsi string) {
	log.Debug().Str("imsi", imsi).Msg("loopback dataplane: flows deactivated")
}
