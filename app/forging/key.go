package forging

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/pocnet/pocd/util/signing"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"
)

// LoadKeyPair derives the forging key from the BIP-39 mnemonic stored in
// mnemonicFile and the given passphrase.
func LoadKeyPair(mnemonicFile string, passphrase []byte) (*signing.KeyPair, error) {
	content, err := os.ReadFile(mnemonicFile)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read mnemonic file %s", mnemonicFile)
	}
	mnemonic := strings.Join(strings.Fields(string(content)), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.Errorf("%s does not hold a valid mnemonic", mnemonicFile)
	}

	seed := bip39.NewSeed(mnemonic, string(passphrase))
	return signing.KeyPairFromSeed(seed)
}

// ReadPassphrase prompts for the mnemonic passphrase on the terminal. It
// returns an empty passphrase when stdin is not a terminal.
func ReadPassphrase(prompt string) ([]byte, error) {
	stdin := int(syscall.Stdin)
	if !term.IsTerminal(stdin) {
		return nil, nil
	}

	initialTermState, err := term.GetState(stdin)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Restore the terminal if interrupted while echo is off.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	defer close(done)
	defer signal.Stop(interrupt)
	go func() {
		select {
		case <-interrupt:
			_ = term.Restore(stdin, initialTermState)
			os.Exit(1)
		case <-done:
		}
	}()

	fmt.Print(prompt)
	passphrase, err := term.ReadPassword(stdin)
	fmt.Println()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return passphrase, nil
}
