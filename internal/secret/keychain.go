package secret

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// keychainService groups every saved table source password under one
// Keychain service so they can be found in Keychain Access.
const keychainService = "blockdoc-table-sources"

// itemNotFound is the exit status of `security` for a missing item.
const itemNotFound = 44

// KeychainStore keeps passwords in the macOS login Keychain through the
// `security` tool. The account name is the source key.
type KeychainStore struct{}

func NewKeychainStore() *KeychainStore {
	return &KeychainStore{}
}

func (k *KeychainStore) security(verb, account string, extra ...string) *exec.Cmd {
	args := append([]string{verb, "-a", account, "-s", keychainService}, extra...)
	return exec.Command("security", args...)
}

// Set adds the item or overwrites an existing one (-U).
func (k *KeychainStore) Set(key string, value []byte) error {
	out, err := k.security("add-generic-password", key, "-w", string(value), "-U").CombinedOutput()
	if err != nil {
		return fmt.Errorf("keychain set %s: %s: %w", key, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Get returns nil, nil when no password is saved for key.
func (k *KeychainStore) Get(key string) ([]byte, error) {
	out, err := k.security("find-generic-password", key, "-w").Output()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFound:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("keychain get %s: %w", key, err)
	}
	return []byte(strings.TrimRight(string(out), "\r\n")), nil
}

// Delete succeeds when the item is already gone.
func (k *KeychainStore) Delete(key string) error {
	err := k.security("delete-generic-password", key).Run()
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFound) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
