package networkmanager

import (
	"context"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netbind/networkmanager/errdefs"
)

func wifiSecretsConn(ssid string) settingMap {
	return settingMap{
		"connection": {
			"id":   dbus.MakeVariant("Home WiFi"),
			"uuid": dbus.MakeVariant("b7e3"),
			"type": dbus.MakeVariant("802-11-wireless"),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(ssid)),
		},
	}
}

func TestSecretAgentGetSecrets(t *testing.T) {
	var got SecretRequest
	agent := &SecretAgent{
		id: "test",
		provider: SecretProviderFunc(func(ctx context.Context, req SecretRequest) (map[string]string, error) {
			got = req
			return map[string]string{"psk": "hunter22"}, nil
		}),
	}

	out, dbusErr := agent.GetSecrets(wifiSecretsConn("home"), "/conn/1",
		"802-11-wireless-security", nil, secretsFlagAllowInteraction)
	require.Nil(t, dbusErr)

	assert.Equal(t, "Home WiFi", got.ConnectionID)
	assert.Equal(t, "home", got.Ssid.String())
	assert.Equal(t, []string{"psk"}, got.Fields)
	assert.False(t, got.RequestNew)

	secrets := out["802-11-wireless-security"]
	require.NotNil(t, secrets)
	assert.Equal(t, "hunter22", secrets["psk"].Value())
}

func TestSecretAgentRequestNew(t *testing.T) {
	agent := &SecretAgent{
		id: "test",
		provider: SecretProviderFunc(func(ctx context.Context, req SecretRequest) (map[string]string, error) {
			assert.True(t, req.RequestNew)
			return map[string]string{"psk": "corrected"}, nil
		}),
	}

	_, dbusErr := agent.GetSecrets(wifiSecretsConn("home"), "/conn/1",
		"802-11-wireless-security", nil, secretsFlagRequestNew)
	assert.Nil(t, dbusErr)
}

func TestSecretAgentUserCancel(t *testing.T) {
	agent := &SecretAgent{
		id: "test",
		provider: SecretProviderFunc(func(ctx context.Context, req SecretRequest) (map[string]string, error) {
			return nil, errdefs.ErrSecretsCanceled
		}),
	}

	_, dbusErr := agent.GetSecrets(wifiSecretsConn("home"), "/conn/1",
		"802-11-wireless-security", nil, secretsFlagAllowInteraction)
	require.NotNil(t, dbusErr)
	assert.Equal(t, secretAgentIface+".Error.UserCanceled", dbusErr.Name)
}

func TestSecretAgentSecretsNotRequired(t *testing.T) {
	agent := &SecretAgent{id: "test", provider: SecretProviderFunc(
		func(ctx context.Context, req SecretRequest) (map[string]string, error) {
			t.Fatal("provider must not be called")
			return nil, nil
		})}

	conn := settingMap{
		"unknown-setting": {
			"password-flags": dbus.MakeVariant(uint32(secretFlagNotRequired)),
		},
	}

	out, dbusErr := agent.GetSecrets(conn, "/conn/1", "unknown-setting", nil, 0)
	require.Nil(t, dbusErr)
	assert.Empty(t, out["unknown-setting"])
}

func TestSecretAgentAgentOwnedWithoutStore(t *testing.T) {
	agent := &SecretAgent{id: "test", provider: SecretProviderFunc(
		func(ctx context.Context, req SecretRequest) (map[string]string, error) {
			t.Fatal("provider must not be called")
			return nil, nil
		})}

	conn := settingMap{
		"unknown-setting": {
			"password-flags": dbus.MakeVariant(uint32(secretFlagAgentOwned)),
		},
	}

	_, dbusErr := agent.GetSecrets(conn, "/conn/1", "unknown-setting", nil, 0)
	require.NotNil(t, dbusErr)
	assert.Equal(t, secretAgentIface+".Error.NoSecrets", dbusErr.Name)
}

func TestSecretFields(t *testing.T) {
	assert.Equal(t, []string{"psk"}, secretFields("802-11-wireless-security", nil))
	assert.Equal(t, []string{"identity", "password"}, secretFields("802-1x", nil))
	assert.Equal(t, []string{"password"}, secretFields("vpn", []string{"password"}))
	assert.Nil(t, secretFields("gsm", nil))
}
