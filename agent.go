package networkmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/netbind/networkmanager/errdefs"
	"github.com/netbind/networkmanager/internal/log"
)

const (
	agentManagerPath  dbus.ObjectPath = "/org/freedesktop/NetworkManager/AgentManager"
	agentManagerIface                 = "org.freedesktop.NetworkManager.AgentManager"
	secretAgentIface                  = "org.freedesktop.NetworkManager.SecretAgent"
	agentObjectPath   dbus.ObjectPath = "/org/freedesktop/NetworkManager/SecretAgent"
)

// GetSecrets request flags.
const (
	secretsFlagAllowInteraction = 0x1
	secretsFlagRequestNew       = 0x2
	secretsFlagUserRequested    = 0x4
)

// Per-setting secret flags.
const (
	secretFlagAgentOwned  = 0x1
	secretFlagNotRequired = 0x4
)

const agentIntrospectXML = `
<node>
	<interface name="org.freedesktop.NetworkManager.SecretAgent">
		<method name="GetSecrets">
			<arg type="a{sa{sv}}" name="connection" direction="in"/>
			<arg type="o" name="connection_path" direction="in"/>
			<arg type="s" name="setting_name" direction="in"/>
			<arg type="as" name="hints" direction="in"/>
			<arg type="u" name="flags" direction="in"/>
			<arg type="a{sa{sv}}" name="secrets" direction="out"/>
		</method>
		<method name="SaveSecrets">
			<arg type="a{sa{sv}}" name="connection" direction="in"/>
			<arg type="o" name="connection_path" direction="in"/>
		</method>
		<method name="DeleteSecrets">
			<arg type="a{sa{sv}}" name="connection" direction="in"/>
			<arg type="o" name="connection_path" direction="in"/>
		</method>
		<method name="CancelGetSecrets">
			<arg type="o" name="connection_path" direction="in"/>
			<arg type="s" name="setting_name" direction="in"/>
		</method>
	</interface>
	<interface name="org.freedesktop.DBus.Introspectable">
		<method name="Introspect">
			<arg name="data" type="s" direction="out"/>
		</method>
	</interface>
</node>`

// SecretRequest describes one GetSecrets call from NetworkManager.
type SecretRequest struct {
	ConnectionID   string
	ConnectionUUID string
	Ssid           Ssid
	SettingName    string
	Fields         []string
	Hints          []string
	// RequestNew is set when NetworkManager rejected a previous secret, i.e.
	// the stored password was wrong.
	RequestNew bool
}

// SecretProvider supplies secrets for a SecretRequest, keyed by the field
// names in SecretRequest.Fields (e.g. "psk", "identity", "password").
// Returning errdefs.ErrSecretsCanceled reports a user cancel instead of a
// failure.
type SecretProvider interface {
	Secrets(ctx context.Context, req SecretRequest) (map[string]string, error)
}

// SecretProviderFunc adapts a function to SecretProvider.
type SecretProviderFunc func(ctx context.Context, req SecretRequest) (map[string]string, error)

func (f SecretProviderFunc) Secrets(ctx context.Context, req SecretRequest) (map[string]string, error) {
	return f(ctx, req)
}

// promptTimeout bounds how long a GetSecrets call may block waiting for the
// provider; NetworkManager gives agents about this long before it gives up.
const promptTimeout = 2 * time.Minute

// SecretAgent answers NetworkManager's secret requests through a
// SecretProvider. It is exported on the client's bus connection and
// registered with the agent manager until Close.
type SecretAgent struct {
	nm       *NetworkManager
	id       string
	provider SecretProvider
}

type variantMap map[string]dbus.Variant
type settingMap map[string]variantMap

// RegisterSecretAgent exports a secret agent under identifier and registers it
// with NetworkManager. One agent per bus connection.
func (nm *NetworkManager) RegisterSecretAgent(identifier string, provider SecretProvider) (*SecretAgent, error) {
	if provider == nil {
		return nil, fmt.Errorf("secret agent requires a provider")
	}

	agent := &SecretAgent{nm: nm, id: identifier, provider: provider}
	conn := nm.dbus.Conn()

	if err := conn.Export(agent, agentObjectPath, secretAgentIface); err != nil {
		return nil, fmt.Errorf("failed to export secret agent: %w", err)
	}
	if err := conn.Export(agent, agentObjectPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("failed to export introspection: %w", err)
	}

	err := nm.dbus.Call(context.Background(), agentManagerPath, agentManagerIface+".Register", nil, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to register agent: %w", err)
	}

	log.Debugf("secret agent registered (id=%s)", identifier)
	return agent, nil
}

// Close unregisters the agent. The export stays on the connection but
// NetworkManager stops calling it.
func (a *SecretAgent) Close() error {
	return a.nm.dbus.Call(context.Background(), agentManagerPath, agentManagerIface+".Unregister", nil, a.id)
}

// GetSecrets is called by NetworkManager over the bus.
func (a *SecretAgent) GetSecrets(
	conn settingMap,
	path dbus.ObjectPath,
	settingName string,
	hints []string,
	flags uint32,
) (settingMap, *dbus.Error) {
	log.Debugf("secret agent: GetSecrets path=%s setting=%s flags=%d", path, settingName, flags)

	req := SecretRequest{
		SettingName: settingName,
		Hints:       hints,
		Fields:      secretFields(settingName, hints),
		RequestNew:  flags&secretsFlagRequestNew != 0,
	}
	if c, ok := conn["connection"]; ok {
		req.ConnectionID, _ = c["id"].Value().(string)
		req.ConnectionUUID, _ = c["uuid"].Value().(string)
	}
	if w, ok := conn["802-11-wireless"]; ok {
		if b, ok := w["ssid"].Value().([]byte); ok {
			req.Ssid = Ssid(b)
		}
	}

	if len(req.Fields) == 0 {
		return a.answerWithoutPrompt(conn, settingName)
	}

	ctx, cancel := context.WithTimeout(context.Background(), promptTimeout)
	defer cancel()

	secrets, err := a.provider.Secrets(ctx, req)
	if err != nil {
		if errors.Is(err, errdefs.ErrSecretsCanceled) {
			return nil, dbus.NewError(secretAgentIface+".Error.UserCanceled", nil)
		}
		log.Warnf("secret agent: provider failed: %v", err)
		return nil, dbus.NewError(secretAgentIface+".Error.Failed", nil)
	}

	out := variantMap{}
	for field, value := range secrets {
		out[field] = dbus.MakeVariant(value)
	}
	return settingMap{settingName: out}, nil
}

// answerWithoutPrompt handles requests for settings this agent has no field
// mapping for, based on the per-setting secret flags.
func (a *SecretAgent) answerWithoutPrompt(conn settingMap, settingName string) (settingMap, *dbus.Error) {
	flags := storedSecretFlags(conn, settingName)

	switch {
	case flags&secretFlagNotRequired != 0:
		return settingMap{settingName: variantMap{}}, nil
	case flags&secretFlagAgentOwned != 0:
		// Agent-owned secrets live with the agent that saved them; this agent
		// keeps none.
		return nil, dbus.NewError(secretAgentIface+".Error.NoSecrets", nil)
	default:
		// System-owned; NetworkManager already has them.
		return settingMap{settingName: variantMap{}}, nil
	}
}

func (a *SecretAgent) SaveSecrets(conn settingMap, path dbus.ObjectPath) *dbus.Error {
	log.Debugf("secret agent: SaveSecrets path=%s", path)
	return nil
}

func (a *SecretAgent) DeleteSecrets(conn settingMap, path dbus.ObjectPath) *dbus.Error {
	log.Debugf("secret agent: DeleteSecrets path=%s", path)
	return nil
}

func (a *SecretAgent) CancelGetSecrets(path dbus.ObjectPath, settingName string) *dbus.Error {
	log.Debugf("secret agent: CancelGetSecrets path=%s setting=%s", path, settingName)
	return nil
}

func (a *SecretAgent) Introspect() (string, *dbus.Error) {
	return agentIntrospectXML, nil
}

// secretFields maps a setting name to the secret fields a provider must fill.
func secretFields(setting string, hints []string) []string {
	switch setting {
	case "802-11-wireless-security":
		return []string{"psk"}
	case "802-1x":
		return []string{"identity", "password"}
	case "vpn":
		return hints
	default:
		return nil
	}
}

// storedSecretFlags digs the relevant *-flags value out of the connection map.
func storedSecretFlags(conn settingMap, settingName string) uint32 {
	section, ok := conn[settingName]
	if !ok {
		return 0
	}

	var key string
	switch settingName {
	case "802-11-wireless-security":
		key = "psk-flags"
	default:
		key = "password-flags"
	}

	if v, ok := section[key]; ok {
		if flags, ok := v.Value().(uint32); ok {
			return flags
		}
	}
	return 0
}
