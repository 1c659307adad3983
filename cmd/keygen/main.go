// Command keygen prints the SHA-256 digest of an admin key for use as
// auth.admin_key_hash in config.yaml. When no key is given it generates a
// random one first.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pulselabs/pulse-gateway/internal/auth"
)

func main() {
	var key string
	if len(os.Args) >= 2 {
		key = os.Args[1]
	} else {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		key = hex.EncodeToString(buf)
	}

	fmt.Printf("Admin key: %s\n", key)
	fmt.Printf("SHA-256 hash: %s\n", auth.HashKey(key))
	fmt.Println("\nAdd this to your config.yaml:")
	fmt.Printf("  auth:\n")
	fmt.Printf("    admin_key_hash: \"%s\"\n", auth.HashKey(key))
}
