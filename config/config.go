package config

import (
	"time"

	"github.com/pitabwire/frame/config"
)

// EngineConfig holds configuration for the USSD menu service.
type EngineConfig struct {
	config.ConfigurationDefault

	// Gateway
	GatewayURL           string `envDefault:""               env:"USSD_GATEWAY_URL"`
	GatewayTimeoutSec    int    `envDefault:"10"             env:"USSD_GATEWAY_TIMEOUT_SEC"`
	CBFailThreshold      int    `envDefault:"5"              env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec    int    `envDefault:"30"             env:"CB_RESET_TIMEOUT_SEC"`
	CallbackPath         string `envDefault:"/ussd/callback" env:"USSD_CALLBACK_PATH"`
	CallbackAuthRequired bool   `envDefault:"false"          env:"USSD_CALLBACK_AUTH_REQUIRED"`

	// Dialogue engine
	RoutesFile string `envDefault:"./routes.yaml" env:"USSD_ROUTES_FILE"`
	MenuDir    string `envDefault:"./menus"       env:"USSD_MENU_DIR"`
	DevMode    bool   `envDefault:"false"         env:"USSD_DEV_MODE"`
	MaxJumps   int    `envDefault:"16"            env:"USSD_MAX_JUMPS"`
	HotReload  bool   `envDefault:"true"          env:"USSD_HOT_RELOAD"`

	// Menu hooks
	HookAllowPrivate bool   `envDefault:"false" env:"HOOK_ALLOW_PRIVATE_IPS"`
	HookAllowHosts   string `envDefault:""      env:"HOOK_ALLOW_HOSTS"`

	// Yate core API
	YateAPINodesFile  string `envDefault:""   env:"YATE_API_NODES_FILE"`
	YateAPIURI        string `envDefault:""   env:"YATE_API_URI"`
	YateAPISecret     string `envDefault:""   env:"YATE_API_SECRET"`
	YateAPITimeoutSec int    `envDefault:"10" env:"YATE_API_TIMEOUT_SEC"`
}

// GatewayTimeout returns the outgoing gateway request timeout.
func (c *EngineConfig) GatewayTimeout() time.Duration {
	return time.Duration(c.GatewayTimeoutSec) * time.Second
}

// CBResetTimeout returns the gateway circuit breaker reset timeout.
func (c *EngineConfig) CBResetTimeout() time.Duration {
	return time.Duration(c.CBResetTimeoutSec) * time.Second
}

// YateAPITimeout returns the core API request timeout.
func (c *EngineConfig) YateAPITimeout() time.Duration {
	return time.Duration(c.YateAPITimeoutSec) * time.Second
}
