package main

import (
	"fmt"
	"os"

	"floatshelf/internal/infra/config"
)

func runConfigCmd() error {
	if len(os.Args) < 3 {
		printConfigUsage()
		return nil
	}

	switch os.Args[2] {
	case "encrypt":
		if len(os.Args) < 4 {
			return fmt.Errorf("usage: floatshelf config encrypt <value>")
		}
		return runConfigEncrypt(os.Args[3])
	default:
		return fmt.Errorf("unknown config subcommand: %s\n\nRun 'floatshelf config' for usage", os.Args[2])
	}
}

func printConfigUsage() {
	fmt.Println(`floatshelf config - Config helpers

USAGE:
    floatshelf config <COMMAND>

COMMANDS:
    encrypt <value>    Print the encrypted "enc:..." form of a secret

Encryption uses the passphrase in FLOATSHELF_CONFIG_KEY. Gateway auth
tokens stored with the enc: prefix are decrypted with the same variable
when the config loads.`)
}

func runConfigEncrypt(value string) error {
	passphrase := os.Getenv("FLOATSHELF_CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("FLOATSHELF_CONFIG_KEY must be set to encrypt values")
	}

	encrypted, err := config.EncryptValue(value, passphrase)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	fmt.Println("enc:" + encrypted)
	return nil
}
