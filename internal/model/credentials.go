package model

import "strings"

// Credentials is the on-disk record described in spec §3 and §6. All
// fields are non-empty after a successful login; MasterKeys always holds
// at least one entry.
type Credentials struct {
	Email          string `json:"email"`
	APIKey         string `json:"apiKey"`
	MasterKeys     string `json:"masterKeys"`
	BaseFolderUUID string `json:"baseFolderUUID"`
	UserID         string `json:"userId"`
	LastLoggedInAt string `json:"lastLoggedInAt"`
}

// MasterKeyList splits the pipe-joined MasterKeys field into ordered,
// newest-last entries (spec §3).
func (c *Credentials) MasterKeyList() []string {
	if c.MasterKeys == "" {
		return nil
	}
	return strings.Split(c.MasterKeys, "|")
}

// LatestMasterKey returns the newest master key, used for all new
// encryption (existing ciphertexts may still need older keys to decrypt).
func (c *Credentials) LatestMasterKey() string {
	keys := c.MasterKeyList()
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

// Valid reports whether every field required after login is populated.
func (c *Credentials) Valid() bool {
	return c.Email != "" && c.APIKey != "" && c.MasterKeys != "" && c.BaseFolderUUID != ""
}
