package main

import (
	"github.com/netbind/networkmanager/internal/log"
)

var Version = "dev"

func init() {
	connectCmd.Flags().StringP("interface", "i", "", "WiFi interface to use")
	connectCmd.Flags().StringP("password", "p", "", "Network passphrase")
	connectCmd.Flags().Bool("save", false, "Store the passphrase in the system keyring")
	connectCmd.Flags().String("identity", "", "802.1x identity for enterprise networks")

	scanCmd.Flags().StringP("interface", "i", "", "WiFi interface to use")
	disconnectCmd.Flags().StringP("interface", "i", "", "Interface to disconnect")
	hotspotCmd.Flags().StringP("interface", "i", "", "WiFi interface to use")
	hotspotCmd.Flags().StringP("password", "p", "", "Hotspot passphrase (empty for open)")

	wifiCmd.AddCommand(wifiOnCmd, wifiOffCmd)
	serviceCmd.AddCommand(serviceStartCmd, serviceStopCmd, serviceStatusCmd)

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.AddCommand(versionCmd, statusCmd, devicesCmd, connectionsCmd, scanCmd,
		connectCmd, disconnectCmd, forgetCmd, hotspotCmd, wifiCmd, serviceCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
