package domain

// TwoFactorSetupResponse is returned by setup: the shared secret, the
// otpauth provisioning URI and its rendered QR code. The secret is pending
// until the user proves possession by confirming a code.
type TwoFactorSetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"manual_entry"`
	QRCode          string `json:"qr_code"` // base64 PNG data URL
}

// TokenPair is the session credential minted after full authentication.
type TokenPair struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // "Bearer"
	ExpiresIn   int64  `json:"expires_in"` // seconds
}
