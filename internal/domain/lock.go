package domain

type LockRequest struct {
	RequestID    string
	ControllerID ControllerID
	DeviceLabel  string
	DeviceID     DeviceID
}

type TokenRequest struct {
	DeviceID   DeviceID
	SecretHash string
	Identity   string
}
