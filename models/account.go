package models

// Account is handed back to the caller once the signer holds a usable key.
type Account struct {
	// 0x-prefixed, 20-byte hex address
	Address string `json:"address"`

	// Encrypted keyfile (only when the account was created by this run)
	KeyFile string `json:"key_file,omitempty"`

	Created bool `json:"created"`
}
