package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	nm "github.com/netbind/networkmanager"
	"github.com/netbind/networkmanager/errdefs"
	"github.com/netbind/networkmanager/internal/log"
)

const keyringService = "nmctl"

var rootCmd = &cobra.Command{
	Use:   "nmctl",
	Short: "NetworkManager command line client",
	Long:  "nmctl talks to NetworkManager over D-Bus: inspect status,\nmanage WiFi and wired connections, and watch for changes.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("nmctl %s\n", Version)
	},
}

// app bundles the client and config every command needs.
type app struct {
	cfg     Config
	client  *nm.NetworkManager
	timeout time.Duration
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		log.SetLevel("debug")
	} else {
		log.SetLevel(cfg.LogLevel)
	}

	timeout, err := cfg.timeout()
	if err != nil {
		return nil, err
	}

	client, err := nm.NewWithSettings(nm.Settings{Timeout: timeout})
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, client: client, timeout: timeout}, nil
}

func (a *app) close() {
	if err := a.client.Close(); err != nil {
		log.Debugf("close: %v", err)
	}
}

func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.timeout)
}

// run wraps a command body with client setup and teardown.
func run(body func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		a, err := setup(cmd)
		if err != nil {
			log.Fatal(err)
		}
		defer a.close()

		if err := body(cmd, args, a); err != nil {
			log.Fatal(err)
		}
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show overall NetworkManager status",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		status, err := a.client.Status(ctx)
		if err != nil {
			return err
		}

		printHeader("NetworkManager")
		printField("State", renderNmState(status.State))
		printField("Connectivity", status.Connectivity.String())
		printField("Networking", onOff(status.NetworkingEnabled))
		printField("WiFi", onOff(status.WirelessEnabled))
		return nil
	}),
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List network devices",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		devices, err := a.client.Devices(ctx)
		if err != nil {
			return err
		}

		printHeader("Devices")
		for _, device := range devices {
			state, err := device.State(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%-12s %-10s %s\n", device.Interface(), device.Type(), renderDeviceState(state))
		}
		return nil
	}),
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List saved connection profiles",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		connections, err := a.client.Connections(ctx)
		if err != nil {
			return err
		}

		printHeader("Connections")
		for _, conn := range connections {
			s := conn.Settings()
			state, err := conn.State(ctx)
			if err != nil {
				return err
			}
			marker := " "
			if state == nm.ConnectionStateActivated {
				marker = okStyle.Render("*")
			}
			fmt.Printf("%s %-28s %-20s %s\n", marker, s.ID, s.Kind, dimStyle.Render(s.UUID))
		}
		return nil
	}),
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for WiFi networks",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		iface, _ := cmd.Flags().GetString("interface")
		wifi, err := wifiDevice(ctx, a, iface)
		if err != nil {
			return err
		}

		if err := wifi.RequestScan(ctx); err != nil {
			return err
		}
		// Give the supplicant a moment to report results.
		time.Sleep(3 * time.Second)

		accessPoints, err := wifi.AccessPoints(ctx)
		if err != nil {
			return err
		}

		printHeader("Networks on " + wifi.Device().Interface())
		for _, ap := range accessPoints {
			fmt.Printf("%s  %-32s %-14s %d MHz\n",
				renderStrength(ap.Strength), ap.Ssid, ap.Security, ap.Frequency)
		}
		return nil
	}),
}

var connectCmd = &cobra.Command{
	Use:   "connect <ssid>",
	Short: "Connect to a WiFi network",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		iface, _ := cmd.Flags().GetString("interface")
		wifi, err := wifiDevice(ctx, a, iface)
		if err != nil {
			return err
		}

		ap, err := findAccessPoint(ctx, wifi, args[0])
		if err != nil {
			return err
		}

		password, _ := cmd.Flags().GetString("password")
		identity, _ := cmd.Flags().GetString("identity")
		creds, err := resolveCredentials(a, ap, password, identity)
		if err != nil {
			return err
		}

		fmt.Printf("Connecting to %s (%s)...\n", ap.Ssid, ap.Security)
		if _, err := wifi.Connect(ctx, ap, creds); err != nil {
			return err
		}

		if save, _ := cmd.Flags().GetBool("save"); save && password != "" && a.cfg.keyringEnabled() {
			if err := keyring.Set(keyringService, ap.Ssid.String(), password); err != nil {
				log.Warnf("failed to store passphrase: %v", err)
			}
		}

		fmt.Println(okStyle.Render("Connected."))
		return nil
	}),
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect a device",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		iface, _ := cmd.Flags().GetString("interface")
		device, err := pickDevice(ctx, a, iface, nm.DeviceTypeWiFi)
		if err != nil {
			return err
		}

		if _, err := device.Disconnect(ctx); err != nil {
			return err
		}
		fmt.Printf("%s disconnected\n", device.Interface())
		return nil
	}),
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id-or-uuid>",
	Short: "Delete a saved connection profile",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		connections, err := a.client.Connections(ctx)
		if err != nil {
			return err
		}

		for _, conn := range connections {
			s := conn.Settings()
			if s.ID != args[0] && s.UUID != args[0] {
				continue
			}
			if err := conn.Delete(ctx); err != nil {
				return err
			}
			if len(s.Ssid) > 0 && a.cfg.keyringEnabled() {
				if err := keyring.Delete(keyringService, s.Ssid.String()); err != nil {
					log.Debugf("keyring delete: %v", err)
				}
			}
			fmt.Printf("Deleted %s (%s)\n", s.ID, s.UUID)
			return nil
		}
		return fmt.Errorf("no connection matches %q", args[0])
	}),
}

var hotspotCmd = &cobra.Command{
	Use:   "hotspot <ssid>",
	Short: "Start a WiFi hotspot",
	Args:  cobra.ExactArgs(1),
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()

		iface, _ := cmd.Flags().GetString("interface")
		wifi, err := wifiDevice(ctx, a, iface)
		if err != nil {
			return err
		}

		ssid, err := nm.SsidFromString(args[0])
		if err != nil {
			return err
		}

		password, _ := cmd.Flags().GetString("password")
		if _, err := wifi.CreateHotspot(ctx, ssid, password); err != nil {
			return err
		}

		fmt.Printf("Hotspot %s up on %s\n", ssid, wifi.Device().Interface())
		return nil
	}),
}

var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "Control the WiFi radio",
}

var wifiOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable the WiFi radio",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.client.SetWirelessEnabled(ctx, true); err != nil {
			return err
		}
		fmt.Println("WiFi enabled")
		return nil
	}),
}

var wifiOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable the WiFi radio",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()
		if err := a.client.SetWirelessEnabled(ctx, false); err != nil {
			return err
		}
		fmt.Println("WiFi disabled")
		return nil
	}),
}

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Control the NetworkManager systemd service",
}

var serviceStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start NetworkManager.service",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()
		state, err := a.client.StartService(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("NetworkManager.service is %s\n", state)
		return nil
	}),
}

var serviceStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop NetworkManager.service",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()
		state, err := a.client.StopService(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("NetworkManager.service is %s\n", state)
		return nil
	}),
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show NetworkManager.service state",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		defer cancel()
		state, err := a.client.ServiceState(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("NetworkManager.service is %s\n", state)
		return nil
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch NetworkManager events until interrupted",
	Run: run(func(cmd *cobra.Command, args []string, a *app) error {
		ctx, cancel := a.ctx()
		monitor, err := a.client.NewMonitor(ctx)
		cancel()
		if err != nil {
			return err
		}
		defer monitor.Stop()

		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events := monitor.Subscribe("nmctl-watch")
		printHeader("Watching (ctrl-c to stop)")
		for {
			select {
			case <-sigCtx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				printEvent(ev)
			}
		}
	}),
}

func printEvent(ev nm.Event) {
	stamp := dimStyle.Render(time.Now().Format("15:04:05"))
	switch ev.Kind {
	case nm.EventDeviceStateChanged:
		fmt.Printf("%s %-18s %s %s\n", stamp, ev.Kind, ev.Path, renderDeviceState(ev.DeviceState))
	case nm.EventStateChanged:
		fmt.Printf("%s %-18s %s\n", stamp, ev.Kind, renderNmState(ev.Status.State))
	default:
		fmt.Printf("%s %-18s %s\n", stamp, ev.Kind, ev.Path)
	}
}

// pickDevice resolves iface (flag, then config file), or falls back to the
// first device of kind.
func pickDevice(ctx context.Context, a *app, iface string, kind nm.DeviceType) (*nm.Device, error) {
	if iface == "" {
		iface = a.cfg.Interface
	}
	if iface != "" {
		return a.client.DeviceByInterface(ctx, iface)
	}

	devices, err := a.client.Devices(ctx)
	if err != nil {
		return nil, err
	}
	for _, device := range devices {
		if device.Type() == kind {
			return device, nil
		}
	}
	return nil, fmt.Errorf("no %s device found", kind)
}

func wifiDevice(ctx context.Context, a *app, iface string) (*nm.WiFiDevice, error) {
	device, err := pickDevice(ctx, a, iface, nm.DeviceTypeWiFi)
	if err != nil {
		return nil, err
	}
	wifi := device.AsWiFiDevice()
	if wifi == nil {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrNotWiFiDevice, device.Interface())
	}
	return wifi, nil
}

func findAccessPoint(ctx context.Context, wifi *nm.WiFiDevice, ssid string) (*nm.AccessPoint, error) {
	accessPoints, err := wifi.AccessPoints(ctx)
	if err != nil {
		return nil, err
	}
	for _, ap := range accessPoints {
		if ap.Ssid.String() == ssid {
			return ap, nil
		}
	}
	return nil, fmt.Errorf("%w: %q; try scanning first", errdefs.ErrAccessPointGone, ssid)
}

// resolveCredentials picks credentials matching the access point's security,
// falling back to the keyring for missing passphrases.
func resolveCredentials(a *app, ap *nm.AccessPoint, password, identity string) (nm.Credentials, error) {
	if ap.Security == nm.SecurityNone {
		return nm.NoCredentials{}, nil
	}

	if password == "" && a.cfg.keyringEnabled() {
		stored, err := keyring.Get(keyringService, ap.Ssid.String())
		if err == nil {
			password = stored
		}
	}
	if password == "" && ap.Security&nm.SecurityEnterprise == 0 {
		return nil, fmt.Errorf("%s requires a passphrase; pass --password", ap.Ssid)
	}

	switch {
	case ap.Security&nm.SecurityEnterprise != 0:
		if identity == "" {
			return nil, fmt.Errorf("%s is an enterprise network; pass --identity", ap.Ssid)
		}
		return nm.EnterpriseCredentials{Identity: identity, Passphrase: password}, nil
	case ap.Security&nm.SecurityWEP != 0:
		return nm.WEPCredentials{Passphrase: password}, nil
	default:
		return nm.WPACredentials{Passphrase: password}, nil
	}
}
