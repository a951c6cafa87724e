package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavidGamba/go-getoptions"
	"github.com/cyverse-de/go-mod/otelutils"
	"github.com/cyverse-de/messaging/v9"
	"github.com/hoteldesk/notification-engine/broadcast"
	"github.com/hoteldesk/notification-engine/common"
	"github.com/hoteldesk/notification-engine/config"
	"github.com/hoteldesk/notification-engine/db"
	"github.com/hoteldesk/notification-engine/dispatch"
	"github.com/hoteldesk/notification-engine/kvstore"
	"github.com/hoteldesk/notification-engine/model"
	"github.com/hoteldesk/notification-engine/service"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const serviceName = "notification-engine"

var log = common.Log.WithField("context", "main")

// commandLineOptionValues represents the values of the command-line options that were passed on the command line when
// this service was invoked.
type commandLineOptionValues struct {
	Config   string
	Once     bool
	LogLevel string
}

func parseCommandLine() *commandLineOptionValues {
	optionValues := &commandLineOptionValues{}
	opt := getoptions.New()

	// Default option values.
	defaultConfigPath := "/etc/hoteldesk/notifications.yml"

	// Define the command-line options.
	opt.Bool("help", false, opt.Alias("h", "?"))
	opt.StringVar(&optionValues.Config, "config", defaultConfigPath,
		opt.Alias("c"),
		opt.Description("the path to the configuration file"))
	opt.BoolVar(&optionValues.Once, "once", false,
		opt.Description("run the notification rules once and exit"))
	opt.StringVar(&optionValues.LogLevel, "log-level", "info",
		opt.Description("the minimum level of log messages to write"))

	// Parse the command line, handling requests for help and usage errors.
	_, err := opt.Parse(os.Args[1:])
	if opt.Called("help") {
		fmt.Fprint(os.Stderr, opt.Help())
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n\n", err)
		fmt.Fprint(os.Stderr, opt.Help(getoptions.HelpSynopsis))
		os.Exit(1)
	}

	return optionValues
}

// storeCloser is a key-value store that holds a connection.
type storeCloser interface {
	kvstore.Store
	Close() error
}

// openStore opens the key-value store named in the configuration.
func openStore(ctx context.Context, cfg *config.Config) (storeCloser, error) {
	if cfg.DBDriver == config.DriverSQLite {
		return db.NewSQLiteStore(cfg.DBURI)
	}

	conn, err := db.InitDatabase(cfg.DBDriver, cfg.DBURI)
	if err != nil {
		return nil, err
	}
	store := db.NewPostgresStore(conn)
	if err := store.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}

// connectPublisher creates an AMQP client that publishes to the configured exchange.
func connectPublisher(cfg *config.Config) (*messaging.Client, error) {
	wrapMsg := "unable to connect to the AMQP broker"

	client, err := messaging.NewClient(cfg.AMQP.URI, true)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	if err := client.SetupPublishing(cfg.AMQP.ExchangeName); err != nil {
		client.Close()
		return nil, errors.Wrap(err, wrapMsg)
	}
	return client, nil
}

func main() {
	// Parse the command-line.
	optionValues := parseCommandLine()

	// Initialize logging.
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(optionValues.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	logrus.SetLevel(level)

	// Initialize tracing.
	tracerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdown := otelutils.TracerProviderFromEnv(tracerCtx, serviceName, func(e error) { log.Fatal(e) })
	defer shutdown()

	// Read in the configuration file.
	cfg, err := config.Load(optionValues.Config)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open the shared store.
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	// The broadcast channel and the email sink share one publishing client.
	var client *messaging.Client
	if cfg.UsesAMQP() {
		client, err = connectPublisher(cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer client.Close()
	}

	// Set up the broadcast channel.
	var channel broadcast.Channel
	switch cfg.BroadcastTransport {
	case config.TransportAMQP:
		amqpChannel, err := broadcast.ConnectAMQP(ctx, &cfg.AMQP, client, cfg.BroadcastRoutingKey, cfg.BroadcastRetention)
		if err != nil {
			log.Fatal(err)
		}
		defer amqpChannel.Close()
		channel = amqpChannel
	default:
		channel = broadcast.NewStorageChannel(store, nil, cfg.BroadcastRetention)
	}

	// Set up the email sink.
	sinks := dispatch.Sinks{}
	if cfg.EmailEnabled {
		sinks.Email, err = dispatch.NewAMQPEmailSender(client, cfg.EmailRoutingKey, cfg.EmailTo)
		if err != nil {
			log.Fatal(err)
		}
	}

	svc := service.New(store, service.Options{
		Channel:    channel,
		TotalRooms: cfg.TotalRooms,
		Sinks:      sinks,
	})

	if optionValues.Once {
		created := svc.RunAllRules(ctx)
		log.Infof("created %d notifications", len(created))
		return
	}

	// Merge notifications from other sessions.
	stopSync := svc.StartSync(ctx, cfg.SyncInterval, func(merged []model.Notification) {
		log.Infof("merged %d notifications from other sessions", len(merged))
	})
	defer stopSync()

	// Run the rules at startup and then on a timer.
	svc.RunAllRules(ctx)
	ticker := time.NewTicker(cfg.RulesInterval)
	defer ticker.Stop()

	log.Info("notification engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-ticker.C:
			svc.RunAllRules(ctx)
		}
	}
}
