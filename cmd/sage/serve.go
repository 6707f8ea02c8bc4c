package main

import (
	"context"
	"errors"
	"os"

	"github.com/Comcast/sage/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveListen string
	serveMQTT   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve consultations over HTTP and WebSockets",
	Long: `Serves the knowledge bases over HTTP: a JSON API under /api, an HTML
questionnaire at /, and WebSockets at /ws.  Idle sessions are swept on
the configured schedule, and finished consultations go to the
configured history storage.

With --mqtt, also serves the MQTT coupling.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var mqttCmd = &cobra.Command{
	Use:   "mqtt",
	Short: "Serve consultations over MQTT",
	Long: `Subscribes to <prefix>/+/in for operations and publishes replies to
<prefix>/<session>/out.`,
	Args: cobra.NoArgs,
	RunE: runMQTT,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP address (overrides http.listen)")
	serveCmd.Flags().BoolVar(&serveMQTT, "mqtt", false, "also serve MQTT")
}

func newService(ctx context.Context) (*service.Service, error) {
	lib, _, err := loadLibrary(ctx)
	if err != nil {
		return nil, err
	}
	st, err := openStorage()
	if err != nil {
		return nil, err
	}
	s, err := service.NewService(lib, st)
	if err != nil {
		return nil, err
	}
	if s.Text, err = loadText(); err != nil {
		return nil, err
	}
	if 0 < cfg.Sweep.Idle {
		s.Idle = cfg.Sweep.Idle
	}
	s.Logger = logger
	return s, nil
}

func newCoupling() *service.MQTTCoupling {
	return service.NewMQTTCoupling(service.MQTTOptions{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		Username:  os.Getenv("SAGE_MQTT_USERNAME"),
		Password:  os.Getenv("SAGE_MQTT_PASSWORD"),
		Reconnect: true,
		Prefix:    cfg.MQTT.Prefix,
		QoS:       byte(cfg.MQTT.QoS),
	}, logger.With(zap.String("coupling", "mqtt")))
}

func serve(opts service.RunOptions) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newService(ctx)
	if err != nil {
		return err
	}

	logger.Info("serving",
		zap.String("listen", opts.Listen),
		zap.Bool("mqtt", opts.MQTT != nil),
		zap.Strings("kbs", s.Library.Names()),
		zap.String("storage", cfg.Storage.Kind))

	if err = s.Run(ctx, opts); errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := service.RunOptions{
		Listen:        cfg.HTTP.Listen,
		MaxConns:      cfg.HTTP.MaxConns,
		SweepSchedule: cfg.Sweep.Schedule,
	}
	if serveListen != "" {
		opts.Listen = serveListen
	}
	if serveMQTT {
		opts.MQTT = newCoupling()
	}
	return serve(opts)
}

func runMQTT(cmd *cobra.Command, args []string) error {
	return serve(service.RunOptions{
		SweepSchedule: cfg.Sweep.Schedule,
		MQTT:          newCoupling(),
	})
}
