package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	api "github.com/oshokin/alarm-clock/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-clock/internal/config"
	"github.com/oshokin/alarm-clock/internal/host/notify"
	"github.com/oshokin/alarm-clock/internal/host/wake"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/repository/alarms"
	"github.com/oshokin/alarm-clock/internal/repository/kv"
	"github.com/oshokin/alarm-clock/internal/service/common"
	"github.com/oshokin/alarm-clock/internal/service/engine"
	"github.com/oshokin/alarm-clock/internal/service/firing"
	"github.com/oshokin/alarm-clock/internal/version"
)

// Options controls the alarmd process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// Ready, when set, receives the bound listen address once serving starts.
	Ready func(address string)
}

var (
	// ErrNoServerAddress indicates missing server configuration.
	ErrNoServerAddress = errors.New("no server address configured")
	// errUnknownNotifier is returned for an unsupported notification backend.
	errUnknownNotifier = errors.New("unknown notification backend")
)

// Run starts the engine and the gRPC server and blocks until ctx is canceled
// or the server stops.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarmd")

	settings, err := loadSettings(opts.ConfigPath)
	if err != nil {
		return err
	}

	// CLI argument overrides the configured address.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	store, closeStore, err := kv.Open(ctx, settings.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			logger.ErrorKV(ctx, "Failed to close store", "error", closeErr)
		}
	}()

	repo := alarms.NewStore(store, settings.Store.Key)
	wakeService := wake.New(wake.WithLateGrace(settings.Engine.LateGrace))

	// Firings resolve against the engine's live set, not the store, so a
	// failed save never brings back the previous alarm. eng is assigned
	// before the wake service starts delivering callbacks.
	var eng *engine.Engine

	liveSet := firing.LoaderFunc(func(ctx context.Context) (*alarms.LoadResult, error) {
		return eng.Load(ctx)
	})

	coordinator, err := newCoordinator(ctx, settings, wakeService, liveSet)
	if err != nil {
		return err
	}

	eng, err = engine.New(
		repo,
		coordinator,
		engine.WithMode(settings.Engine.Mode),
		engine.WithPollInterval(settings.Engine.PollInterval),
	)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	if err = eng.Init(ctx); err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}

	// Canceling ends the wake service and the poller on every return path.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	if err = wakeService.Initialize(groupCtx); err != nil {
		return fmt.Errorf("initialise wake service: %w", err)
	}

	group.Go(func() error {
		<-wakeService.Done()

		return nil
	})

	if err = eng.Start(groupCtx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(auditInterceptor(ctx)))
	api.RegisterAlarmServiceServer(grpcServer, api.NewServer(eng, api.WithPending(pendingFirings(wakeService, eng))))

	group.Go(func() error {
		<-groupCtx.Done()

		logger.Info(ctx, "Shutting down")
		eng.Stop()
		grpcServer.GracefulStop()

		return nil
	})

	group.Go(func() error {
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", serveErr)
		}

		return nil
	})

	logger.InfoKV(ctx, "Alarm daemon listening",
		"listen_address", lis.Addr().String(),
		"store_backend", settings.Store.Backend,
		"store_key", repo.Key(),
		"mode", eng.Mode(),
		"version", version.Short(),
	)

	if opts.Ready != nil {
		opts.Ready(lis.Addr().String())
	}

	err = group.Wait()

	logger.Info(ctx, "Alarm daemon stopped")

	return err
}

// Fire replays the wake callback for identifier in this process. With no
// engine running, the alarm is resolved from the store.
func Fire(ctx context.Context, configPath string, identifier int) error {
	ctx = logger.WithName(ctx, "alarmd-fire")

	settings, err := loadSettings(configPath)
	if err != nil {
		return err
	}

	store, closeStore, err := kv.Open(ctx, settings.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	defer func() {
		_ = closeStore()
	}()

	// One-shot process: nothing to re-arm, so the wake service is never started.
	settings.Engine.Mode = config.ModePoll

	coordinator, err := newCoordinator(ctx, settings, wake.New(), alarms.NewStore(store, settings.Store.Key))
	if err != nil {
		return err
	}

	coordinator.OnFire(ctx, identifier)

	return nil
}

// loadSettings reads the configuration and applies its log level.
func loadSettings(path string) (*config.Config, error) {
	settings, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if err = logger.Configure(settings.LogLevel); err != nil {
		return nil, err
	}

	return settings, nil
}

// newCoordinator builds the notifier and the firing coordinator.
func newCoordinator(
	ctx context.Context,
	settings *config.Config,
	scheduler firing.Scheduler,
	loader firing.Loader,
) (*firing.Coordinator, error) {
	notifier, err := newNotifier(settings.Notification.Backend)
	if err != nil {
		return nil, err
	}

	channel := notify.Channel{
		ID:          settings.Notification.ChannelID,
		Name:        settings.Notification.ChannelName,
		Description: settings.Notification.ChannelDescription,
	}

	if err = notifier.Initialize(ctx, channel); err != nil {
		return nil, fmt.Errorf("initialise notifier: %w", err)
	}

	return firing.NewCoordinator(
		scheduler,
		notifier,
		loader,
		firing.WithChannel(channel),
		firing.WithBody(settings.Notification.Body),
		firing.WithRearm(settings.Engine.Mode == config.ModeAnalytic),
	), nil
}

// newNotifier selects the notification backend.
func newNotifier(backend string) (notify.Notifier, error) {
	switch backend {
	case config.NotifierLog, "":
		return notify.NewLogNotifier(), nil
	case config.NotifierDesktop:
		return notify.NewDesktopNotifier(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownNotifier, backend)
	}
}

// pendingFirings reports the wake service's pending requests with their alarm IDs.
func pendingFirings(service *wake.Service, eng *engine.Engine) api.PendingFunc {
	return func() []api.PendingFiring {
		requests := service.Pending()
		if len(requests) == 0 {
			return nil
		}

		byIdentifier := make(map[int]string)
		for _, a := range eng.Snapshot() {
			byIdentifier[firing.Identifier(a.ID)] = a.ID
		}

		result := make([]api.PendingFiring, 0, len(requests))
		for _, r := range requests {
			result = append(result, api.PendingFiring{
				Identifier: r.ID,
				AlarmID:    byIdentifier[r.ID],
				At:         r.At,
			})
		}

		return result
	}
}

// auditInterceptor logs every call with its caller and hands the daemon
// logger to the handler.
func auditInterceptor(ctx context.Context) grpc.UnaryServerInterceptor {
	base := logger.FromContext(ctx)

	return func(reqCtx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		// Handler logs carry the method name.
		reqCtx = logger.WithKV(logger.ToContext(reqCtx, base), "method", info.FullMethod)

		resp, err := handler(reqCtx, req)

		logger.DebugKV(reqCtx, "Request handled",
			"actor", common.ActorFromContext(reqCtx),
			"code", status.Code(err).String(),
		)

		return resp, err
	}
}

// resolveListenAddress determines the listen address for the gRPC server.
// The override wins; otherwise the configured address is used as is.
func resolveListenAddress(configAddr, override string) (string, error) {
	address := configAddr
	if override != "" {
		address = override
	}

	if address == "" {
		return "", ErrNoServerAddress
	}

	if _, _, err := net.SplitHostPort(address); err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", address, err)
	}

	return address, nil
}
