package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/pitabwire/frame"
	"github.com/pitabwire/frame/config"
	"github.com/pitabwire/frame/workerpool"
	"github.com/pitabwire/util"

	ussdconfig "github.com/voicetyped/ussdmenu/config"
	adminhandler "github.com/voicetyped/ussdmenu/internal/admin/handler"
	"github.com/voicetyped/ussdmenu/internal/callback"
	"github.com/voicetyped/ussdmenu/internal/connectutil"
	"github.com/voicetyped/ussdmenu/pkg/events"
	"github.com/voicetyped/ussdmenu/pkg/gateway"
	"github.com/voicetyped/ussdmenu/pkg/hooks"
	"github.com/voicetyped/ussdmenu/pkg/menu"
	"github.com/voicetyped/ussdmenu/pkg/urlvalidation"
	"github.com/voicetyped/ussdmenu/pkg/ussd"
	"github.com/voicetyped/ussdmenu/pkg/yateapi"
)

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[ussdconfig.EngineConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	eventRef := cfg.GetEventsQueueName()
	eventURL := cfg.GetEventsQueueURL()

	ctx, srv := frame.NewService(
		frame.WithConfig(&cfg),
		frame.WithName("ussdmenu"),
		frame.WithRegisterServerOauth2Client(),
		frame.WithRegisterPublisher(eventRef, eventURL),
	)
	defer srv.Stop(ctx)

	pool, err := srv.WorkManager().GetPool()
	if err != nil {
		log.Fatalf("getting worker pool: %v", err)
	}

	authenticator := srv.SecurityManager().GetAuthenticator(ctx)

	pub := events.NewPublisher(srv.QueueManager(), "ussd", eventRef)

	api, err := yateAPIClient(&cfg)
	if err != nil {
		log.Fatalf("loading core API nodes: %v", err)
	}

	registry := ussd.NewRegistry()
	if err := menu.RegisterBuiltins(registry, api); err != nil {
		log.Fatalf("registering builtin menus: %v", err)
	}

	hookExec := hooks.NewExecutor(pub, hookValidation(&cfg)...)
	menus := menu.NewLoader(cfg.MenuDir, registry, hookExec, pub)
	if _, err := menus.LoadAll(ctx); err != nil {
		log.Printf("warning: loading menus: %v", err)
	}

	routes := ussd.NewRouteLoader(cfg.RoutesFile).
		WithPublisher(pub).
		WithFallback(ussd.RouteTable{ussd.DefaultRoute: menu.DemoID})
	if _, err := routes.Load(); err != nil {
		log.Printf("warning: loading routes, serving %q by default: %v", menu.DemoID, err)
	}

	gw := gateway.NewClient(gateway.ClientConfig{
		URL:     cfg.GatewayURL,
		Timeout: cfg.GatewayTimeout(),
		Breaker: gateway.BreakerConfig{
			FailureThreshold: cfg.CBFailThreshold,
			ResetTimeout:     cfg.CBResetTimeout(),
		},
	})

	engine := ussd.NewEngine(registry, routes, gw, pub, ussd.EngineConfig{
		MaxJumps: cfg.MaxJumps,
		DevMode:  cfg.DevMode,
	})

	mux := http.NewServeMux()

	var cb http.Handler = callback.NewHandler(engine)
	if cfg.CallbackAuthRequired {
		cb = connectutil.AuthenticatedHTTPMiddleware(cb, authenticator)
	}
	mux.Handle(cfg.CallbackPath, connectutil.LogRequests(cb))

	opts, err := connectutil.AuthenticatedOptions(ctx, authenticator)
	if err != nil {
		log.Fatalf("setting up auth interceptors: %v", err)
	}
	path, hdlr := adminhandler.NewSessionServiceHandler(adminhandler.NewSessionHandler(engine, pub), opts...)
	mux.Handle(path, hdlr)

	if cfg.HotReload {
		startWatchers(ctx, pool, routes, menus)
	}

	srv.Init(ctx, frame.WithHTTPHandler(connectutil.H2CHandler(mux)))

	if err := srv.Run(ctx, ""); err != nil {
		log.Fatalf("service exited: %v", err)
	}
}

func yateAPIClient(cfg *ussdconfig.EngineConfig) (*yateapi.Client, error) {
	nodes := yateapi.Nodes{}
	if cfg.YateAPINodesFile != "" {
		loaded, err := yateapi.LoadNodes(cfg.YateAPINodesFile)
		if err != nil {
			return nil, err
		}
		nodes = loaded
	}
	if cfg.YateAPIURI != "" {
		nodes[yateapi.DefaultNode] = yateapi.Node{URI: cfg.YateAPIURI, Secret: cfg.YateAPISecret}
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return yateapi.NewClient(nodes, cfg.YateAPITimeout()), nil
}

func hookValidation(cfg *ussdconfig.EngineConfig) []urlvalidation.Option {
	var opts []urlvalidation.Option
	if cfg.HookAllowPrivate {
		opts = append(opts, urlvalidation.AllowPrivateIPs())
	}
	if cfg.HookAllowHosts != "" {
		var hosts []string
		for h := range strings.SplitSeq(cfg.HookAllowHosts, ",") {
			if h = strings.TrimSpace(h); h != "" {
				hosts = append(hosts, h)
			}
		}
		opts = append(opts, urlvalidation.AllowHosts(hosts...))
	}
	return opts
}

func startWatchers(ctx context.Context, pool workerpool.WorkerPool, routes *ussd.RouteLoader, menus *menu.Loader) {
	done := ctx.Done()

	watchRoutes := func() {
		err := routes.WatchAndReload(done, func(err error) {
			util.Log(ctx).WithError(err).Error("route reload failed, keeping previous table")
		})
		if err != nil {
			util.Log(ctx).WithError(err).Error("route watcher stopped")
		}
	}
	watchMenus := func() {
		if err := menus.WatchAndReload(ctx, done); err != nil {
			util.Log(ctx).WithError(err).Error("menu watcher stopped")
		}
	}

	for _, w := range []func(){watchRoutes, watchMenus} {
		if err := pool.Submit(ctx, w); err != nil {
			go w()
		}
	}
}
