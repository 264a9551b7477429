// Package errdefs defines the error domain shared by the binding packages.
package errdefs

type ErrorType int

const (
	ErrTypeDBus ErrorType = iota
	ErrTypeNotFound
	ErrTypeInvalidSSID
	ErrTypeInvalidPassphrase
	ErrTypeUnsupportedDevice
	ErrTypeTimeout
	ErrTypeService
	ErrTypeGeneric
)

type CustomError struct {
	Type    ErrorType
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

func NewCustomError(errType ErrorType, message string) error {
	return &CustomError{
		Type:    errType,
		Message: message,
	}
}

var (
	ErrNotWiFiDevice     = NewCustomError(ErrTypeUnsupportedDevice, "not a WiFi device")
	ErrNotEthernetDevice = NewCustomError(ErrTypeUnsupportedDevice, "not an ethernet device")
	ErrSSIDTooLong       = NewCustomError(ErrTypeInvalidSSID, "SSID length exceeds 32 bytes")
	ErrInvalidPassphrase = NewCustomError(ErrTypeInvalidPassphrase, "invalid pre-shared key")
	ErrAccessPointGone   = NewCustomError(ErrTypeNotFound, "access point no longer visible")
	ErrConnectionGone    = NewCustomError(ErrTypeNotFound, "connection profile not found")
	ErrDeviceGone        = NewCustomError(ErrTypeNotFound, "device not found")
	ErrTimeout           = NewCustomError(ErrTypeTimeout, "timed out waiting for target state")
	ErrServiceFailed     = NewCustomError(ErrTypeService, "NetworkManager.service is in a failed state")
	ErrSecretsCanceled   = NewCustomError(ErrTypeGeneric, "secret request canceled by provider")
)
