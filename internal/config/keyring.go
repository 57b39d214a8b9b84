package config

import (
	"errors"
	"sync"

	"github.com/99designs/keyring"
)

// DefaultKeyringService is the credential store namespace for stored passwords.
const DefaultKeyringService = "go-mcp-mssql"

// secretKeys are the only settings looked up in the OS keyring.
var secretKeys = map[string]bool{
	KeyMSSQLPassword:    true,
	KeyPostgresPassword: true,
	KeyMySQLPassword:    true,
}

// Keyring resolves passwords from the OS credential store. The ring is
// opened on first use; an unavailable store behaves as an empty source.
type Keyring struct {
	service string

	once sync.Once
	ring keyring.Keyring
	err  error
}

func NewKeyring(service string) *Keyring {
	if service == "" {
		service = DefaultKeyringService
	}
	return &Keyring{service: service}
}

func (k *Keyring) open() (keyring.Keyring, error) {
	k.once.Do(func() {
		k.ring, k.err = keyring.Open(keyring.Config{
			ServiceName: k.service,
			AllowedBackends: []keyring.BackendType{
				keyring.KeychainBackend,
				keyring.WinCredBackend,
				keyring.SecretServiceBackend,
				keyring.KWalletBackend,
				keyring.PassBackend,
			},
		})
	})
	return k.ring, k.err
}

func (k *Keyring) Get(key string) (string, bool) {
	if !secretKeys[key] {
		return "", false
	}
	ring, err := k.open()
	if err != nil {
		return "", false
	}
	item, err := ring.Get(key)
	if err != nil {
		return "", false
	}
	return string(item.Data), true
}

// Store saves a secret under key.
func (k *Keyring) Store(key, value string) error {
	if !secretKeys[key] {
		return errors.New("only password settings can be stored in the keyring")
	}
	ring, err := k.open()
	if err != nil {
		return err
	}
	return ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: k.service + " " + key})
}
