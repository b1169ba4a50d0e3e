// Command sxkey seals an authority private key into an encrypted key file
// that the exchange can load through authority.encrypted_key_path.
//
//	SX_KEY_PASSWORD=... sxkey -key 0xac09... -out authority.json
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alanyoungcy/sportsxchange/internal/crypto"
)

func main() {
	keyHex := flag.String("key", "", "hex private key (defaults to $SX_AUTHORITY_PRIVATE_KEY)")
	out := flag.String("out", "authority.json", "path of the key file to write")
	check := flag.Bool("check", false, "decrypt -out and print its address instead of writing")
	flag.Parse()

	password := os.Getenv("SX_KEY_PASSWORD")
	if password == "" {
		fatal("SX_KEY_PASSWORD must be set")
	}

	if *check {
		data, err := os.ReadFile(*out)
		if err != nil {
			fatal(err.Error())
		}
		key, err := crypto.DecryptKey(data, password)
		if err != nil {
			fatal(err.Error())
		}
		signer, err := crypto.NewSigner(key)
		if err != nil {
			fatal(err.Error())
		}
		fmt.Println(signer.Address())
		return
	}

	if *keyHex == "" {
		*keyHex = os.Getenv("SX_AUTHORITY_PRIVATE_KEY")
	}
	if *keyHex == "" {
		fatal("no key given; pass -key or set SX_AUTHORITY_PRIVATE_KEY")
	}

	data, err := crypto.EncryptKey(*keyHex, password)
	if err != nil {
		fatal(err.Error())
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		fatal(err.Error())
	}
	signer, err := crypto.NewSigner(*keyHex)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("wrote %s for %s\n", *out, signer.Address())
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "sxkey:", msg)
	os.Exit(1)
}
