package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// server is a registered mDNS service.
type server interface {
	SetText(txt []string)
	Shutdown()
}

// registerFunc registers an mDNS service. zeroconf.Register in production.
type registerFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error)

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (server, error) {
	srv, err := zeroconf.Register(instance, service, domain, port, txt, ifaces, opts...)
	if err != nil {
		return nil, err
	}
	return srv, nil
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration

	// Logger is the operational logger. Optional.
	Logger *slog.Logger
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}

// MDNSAdvertiser publishes one gate-web instance.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	register registerFunc
	logger   *slog.Logger

	mu     sync.Mutex
	server server
	info   Info
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	a := &MDNSAdvertiser{
		config:   config,
		register: zeroconfRegister,
		logger:   config.Logger,
	}
	if a.logger == nil {
		a.logger = slog.New(slog.DiscardHandler)
	}
	return a
}

// interfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) interfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		a.logger.Warn("mdns interface not found, using all", "interface", a.config.Interface, "error", err)
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise starts advertising info, replacing any earlier advertisement.
func (a *MDNSAdvertiser) Advertise(info Info) error {
	if info.Instance == "" {
		info.Instance = DefaultInstance
	}
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}
	if info.Port == 0 {
		info.Port = DefaultPort
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	srv, err := a.register(
		info.Instance,
		ServiceType,
		Domain,
		int(info.Port),
		TXTRecordsToStrings(EncodeTXT(&info)),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}

	a.server = srv
	a.info = info
	a.logger.Info("advertising", "service", ServiceType, "instance", info.Instance, "port", info.Port)
	return nil
}

// Update replaces the TXT records of the running advertisement.
func (a *MDNSAdvertiser) Update(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	info.Instance = a.info.Instance
	info.Port = a.info.Port
	a.server.SetText(TXTRecordsToStrings(EncodeTXT(&info)))
	a.info = info
	return nil
}

// Advertising reports whether a service is registered.
func (a *MDNSAdvertiser) Advertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// Stop withdraws the advertisement. Safe to call when not advertising.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
		a.logger.Info("advertisement withdrawn", "instance", a.info.Instance)
	}
}
