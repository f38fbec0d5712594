package commands

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wolfeidau/sessiond/internal/billing"
	"github.com/wolfeidau/sessiond/internal/config"
	"github.com/wolfeidau/sessiond/internal/credit"
	"github.com/wolfeidau/sessiond/internal/dataplane"
	"github.com/wolfeidau/sessiond/internal/logger"
	"github.com/wolfeidau/sessiond/internal/orchestrator"
)

type ServerCmd struct {
	Config   string `help:"path to YAML config file" type:"existingfile" optional:""`
	Loopback bool   `help:"run with in-process loopback collaborators (local development only)" default:"true"`
}

func (s *ServerCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Dev)

	cfg, err := config.Load(s.Config)
	if err != nil {
		return err
	}

	orch := orchestrator.New(
		credit.NewMemoryEngine(),
		dataplane.Loopback{},
		&billing.Loopback{},
		log,
		orchestrator.Options{
			IdleTimeout:        cfg.IdleTimeout.AsDuration(),
			DrainTimeout:       cfg.DrainTimeout.AsDuration(),
			SetupRetryInterval: cfg.SetupRetryInterval.AsDuration(),
		},
	)
	if err := orch.Start(); err != nil {
		return err
	}
	defer func() {
		if err := orch.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop orchestrator")
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	log.Info().Str("version", globals.Version).Str("listen", cfg.ListenAddr).Msg("Starting sessiond")

	return configureHTTPServer(cfg.ListenAddr, mux).ListenAndServe()
}
